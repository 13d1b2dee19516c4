package dto

import (
	"time"

	"github.com/google/uuid"
)

type SubmitQuestionRequest struct {
	ConversationId   *uuid.UUID  `json:"conversation_id,omitempty"`
	DataSourceIds    []uuid.UUID `json:"data_source_ids"`
	Question         string      `json:"question" validate:"required,max=2000"`
	ExtendedThinking bool        `json:"extended_thinking"`
	RequestChart     bool        `json:"request_chart"`
	LengthPreference string      `json:"length_preference,omitempty" validate:"omitempty,oneof=short standard detailed"`
}

type ChartPointDTO struct {
	X interface{} `json:"x"`
	Y float64     `json:"y"`
}

type ChartDTO struct {
	Type       string          `json:"type"`
	XAxis      string          `json:"x_axis"`
	YAxis      string          `json:"y_axis"`
	Data       []ChartPointDTO `json:"data"`
	Reasoning  string          `json:"reasoning,omitempty"`
	Confidence string          `json:"confidence,omitempty"`
	Fallback   bool            `json:"fallback,omitempty"`
}

type TierMetaDTO struct {
	Tier              string   `json:"tier"`
	RemainingQuota    *int     `json:"remaining_quota,omitempty"`
	RetryAfterSeconds *int     `json:"retry_after_seconds,omitempty"`
	UpgradeHints      []string `json:"upgrade_hints,omitempty"`
}

type SubmitQuestionResponse struct {
	ConversationId     uuid.UUID   `json:"conversation_id"`
	AnswerText         string      `json:"answer_text"`
	Confidence         float64     `json:"confidence"`
	ConfidenceLevel    string      `json:"confidence_level"`
	ConfidenceReason   string      `json:"confidence_reason,omitempty"`
	SuggestedFollowUps []string    `json:"suggested_follow_ups"`
	Chart              *ChartDTO   `json:"chart,omitempty"`
	Intent             string      `json:"intent"`
	MissingColumns     []string    `json:"missing_columns,omitempty"`
	TierMeta           TierMetaDTO `json:"tier_meta"`
}

type UsageResponse struct {
	Tier      string      `json:"tier"`
	Status    string      `json:"status"`
	Limit     int         `json:"limit"`
	Used      int         `json:"used"`
	Remaining int         `json:"remaining"`
	ResetsAt  *time.Time  `json:"resets_at,omitempty"`
	Policy    interface{} `json:"policy"`
}
