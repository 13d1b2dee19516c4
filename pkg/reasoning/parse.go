package reasoning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type classificationWire struct {
	Intent         string   `json:"intent"`
	MissingColumns []string `json:"missing_columns"`
	Reason         string   `json:"reason"`
}

type answerWire struct {
	Answer           string      `json:"answer"`
	Confidence       interface{} `json:"confidence"`
	ConfidenceReason string      `json:"confidence_reason"`
	FollowUps        []string    `json:"follow_ups"`
}

type chartWire struct {
	Type       string `json:"type"`
	XAxis      string `json:"x_axis"`
	YAxis      string `json:"y_axis"`
	Reasoning  string `json:"reasoning"`
	Confidence string `json:"confidence"`
}

// decodeObject pulls the outermost JSON object out of a model reply.
// Models often wrap JSON in prose or code fences.
func decodeObject(reply string, v interface{}) error {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object in reply", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

func parseClassification(reply string) (Classification, error) {
	var w classificationWire
	if err := decodeObject(reply, &w); err != nil {
		return Classification{}, err
	}
	intent := Intent(strings.ToLower(strings.TrimSpace(w.Intent)))
	if !intent.Valid() {
		return Classification{}, fmt.Errorf("%w: unknown intent %q", ErrMalformedOutput, w.Intent)
	}
	return Classification{Intent: intent, MissingColumns: w.MissingColumns, Reason: w.Reason}, nil
}

func parseAnswer(reply string) (AnswerOutput, error) {
	var w answerWire
	if err := decodeObject(reply, &w); err != nil {
		return AnswerOutput{}, err
	}
	if strings.TrimSpace(w.Answer) == "" {
		return AnswerOutput{}, fmt.Errorf("%w: empty answer", ErrMalformedOutput)
	}
	confidence, ok := parseConfidence(w.Confidence)
	if !ok {
		return AnswerOutput{}, fmt.Errorf("%w: bad confidence %v", ErrMalformedOutput, w.Confidence)
	}
	return AnswerOutput{
		Answer:           strings.TrimSpace(w.Answer),
		Confidence:       confidence,
		ConfidenceReason: w.ConfidenceReason,
		FollowUps:        w.FollowUps,
	}, nil
}

func parseChart(reply string) (ChartOutput, error) {
	var w chartWire
	if err := decodeObject(reply, &w); err != nil {
		return ChartOutput{}, err
	}
	if w.Type == "" || w.XAxis == "" || w.YAxis == "" {
		return ChartOutput{}, fmt.Errorf("%w: incomplete chart recommendation", ErrMalformedOutput)
	}
	return ChartOutput{
		Type:       strings.ToLower(strings.TrimSpace(w.Type)),
		XAxis:      w.XAxis,
		YAxis:      w.YAxis,
		Reasoning:  w.Reasoning,
		Confidence: strings.ToLower(strings.TrimSpace(w.Confidence)),
	}, nil
}

// parseConfidence accepts a number in [0,1], a percentage, or a high/medium/low label
func parseConfidence(v interface{}) (float64, bool) {
	switch c := v.(type) {
	case float64:
		if c > 1 && c <= 100 {
			c = c / 100
		}
		return c, c >= 0 && c <= 1
	case string:
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "high":
			return 0.8, true
		case "medium":
			return 0.55, true
		case "low":
			return 0.25, true
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0, false
		}
		return parseConfidence(f)
	}
	return 0, false
}
