package gateway

import (
	"moderation-gateway/internal/aggregator"
	"moderation-gateway/internal/config"
	"moderation-gateway/internal/verdict"
)

// Response is the unified outbound response body (spec.md §3).
type Response struct {
	Status            aggregator.Status                        `json:"status"`
	CleanText         string                                   `json:"clean_text"`
	BlockedCategories []string                                  `json:"blocked_categories"`
	Reasons           []string                                  `json:"reasons"`
	Results           map[string]verdict.Verdict                `json:"results"`
}

// buildResponse assembles the final response body from Stage A/B's outputs.
func buildResponse(agg aggregator.Result, cleanText string, verdicts map[config.AnalyzerName]verdict.Verdict) Response {
	categories := make([]string, 0, len(agg.BlockedCategories))
	for _, name := range agg.BlockedCategories {
		categories = append(categories, string(name))
	}

	results := make(map[string]verdict.Verdict, len(verdicts))
	for name, v := range verdicts {
		results[string(name)] = v
	}

	reasons := agg.Reasons
	if reasons == nil {
		reasons = []string{}
	}

	return Response{
		Status:            agg.Status,
		CleanText:         cleanText,
		BlockedCategories: categories,
		Reasons:           reasons,
		Results:           results,
	}
}

// errorBody is the JSON shape returned for INVALID_INPUT and INTERNAL errors.
type errorBody struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
