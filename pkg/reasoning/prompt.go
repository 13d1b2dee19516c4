package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"euno-analytics-be/internal/constant"
	"euno-analytics-be/pkg/correlation"
	"euno-analytics-be/pkg/schema"
)

const maxPromptSampleRows = 10

func describeSources(sources []SourceContext) string {
	var b strings.Builder
	for i, src := range sources {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Dataset %q (%d rows)\n", src.Name, src.RowCount)

		cols := make([]string, len(src.Columns))
		for j, c := range src.Columns {
			cols[j] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
		}
		fmt.Fprintf(&b, "Columns: %s\n", strings.Join(cols, ", "))

		if len(src.Insights.Numeric) > 0 || len(src.Insights.Temporal) > 0 {
			b.WriteString("Insights:\n")
			for _, n := range src.Insights.Numeric {
				fmt.Fprintf(&b, "- %s: count %d, sum %s, mean %s, min %s, max %s\n",
					n.Column, n.Count, num(n.Sum), num(n.Mean), num(n.Min), num(n.Max))
			}
			for _, t := range src.Insights.Temporal {
				fmt.Fprintf(&b, "- %s: %s to %s\n", t.Column, t.From.Format("2006-01-02"), t.To.Format("2006-01-02"))
			}
		}

		b.WriteString("Sample rows:\n")
		b.WriteString(describeRows(src.Sample))
	}
	return b.String()
}

func describeRows(rows []schema.Row) string {
	var b strings.Builder
	for i, r := range rows {
		if i >= maxPromptSampleRows {
			break
		}
		raw, err := json.Marshal(r)
		if err != nil {
			continue
		}
		b.Write(raw)
		b.WriteString("\n")
	}
	return b.String()
}

func describeColumns(cols []schema.Column) string {
	lines := make([]string, len(cols))
	for i, c := range cols {
		lines[i] = fmt.Sprintf("- %s: %s", c.Name, c.Type)
	}
	return strings.Join(lines, "\n")
}

func describeHistory(history []Turn) string {
	if len(history) == 0 {
		return "(none)"
	}
	lines := make([]string, len(history))
	for i, t := range history {
		lines[i] = fmt.Sprintf("%s: %s", t.Role, t.Content)
	}
	return strings.Join(lines, "\n")
}

func describeJoinKeys(keys []correlation.Key) string {
	if len(keys) == 0 {
		return ""
	}
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("- %s.%s = %s.%s (value overlap %.0f%%)",
			k.Left.SourceID, k.Left.Column, k.Right.SourceID, k.Right.Column, k.Overlap*100)
	}
	return fmt.Sprintf(constant.JoinKeysSection, strings.Join(lines, "\n"))
}

func buildClassifyPrompt(req ClassifyRequest) string {
	return fmt.Sprintf(constant.ClassifyQuestionPrompt,
		describeSources(req.Sources),
		describeHistory(req.History),
		req.Question,
	)
}

func buildAnswerPrompt(req AnswerRequest) string {
	length := "Answer as thoroughly as the data supports."
	if req.MaxWords > 0 {
		length = fmt.Sprintf("Keep the answer under %d words.", req.MaxWords)
	}

	followUps := "Return an empty follow_ups list."
	if req.WantFollowUps {
		followUps = "Suggest up to 3 follow-up questions answerable from these same columns, naming the columns they use."
	}

	var extra []string
	if req.AllowForecast {
		extra = append(extra, constant.ForecastInstruction)
	} else {
		extra = append(extra, constant.NoForecastInstruction)
	}
	if req.ExtendedThinking {
		extra = append(extra, constant.ExtendedThinkingInstruction)
	}

	return fmt.Sprintf(constant.AnswerQuestionPrompt,
		describeSources(req.Sources),
		describeJoinKeys(req.JoinKeys),
		describeHistory(req.History),
		req.Question,
		length,
		followUps,
		strings.Join(extra, "\n"),
	)
}

func buildChartPrompt(req ChartRequest) string {
	return fmt.Sprintf(constant.RecommendChartPrompt,
		req.Question,
		req.RowCount,
		describeColumns(req.Columns),
		describeRows(req.Sample),
	)
}

func num(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
