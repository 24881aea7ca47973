package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/michaelbrown/schoolbot/internal/apperr"
)

func classWithTimes(start, end string) map[string]any {
	return map[string]any{
		"name":   "Prop",
		"status": "ACTIVE",
		"sessions": []any{
			map[string]any{"sessionKey": "SESSION_3", "startTime": start, "endTime": end, "amount": float64(1)},
		},
	}
}

func TestClockValidationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ctx := context.Background()

	properties.Property("every HH:MM in range reaches the backend once", prop.ForAll(
		func(h, m int) bool {
			ex, stub := newTestExecutor()
			clock := fmt.Sprintf("%02d:%02d", h, m)
			_, err := ex.Execute(ctx, "create_class", classWithTimes(clock, clock), "tok")
			return err == nil && len(stub.calls) == 1
		},
		gen.IntRange(0, 23),
		gen.IntRange(0, 59),
	))

	properties.Property("hours past 23 never reach the backend", prop.ForAll(
		func(h, m int) bool {
			ex, stub := newTestExecutor()
			clock := fmt.Sprintf("%02d:%02d", h, m)
			_, err := ex.Execute(ctx, "create_class", classWithTimes(clock, "10:00"), "tok")
			return apperr.Is(err, apperr.KindValidation) && len(stub.calls) == 0
		},
		gen.IntRange(24, 99),
		gen.IntRange(0, 59),
	))

	properties.Property("minutes past 59 never reach the backend", prop.ForAll(
		func(h, m int) bool {
			ex, stub := newTestExecutor()
			clock := fmt.Sprintf("%02d:%02d", h, m)
			_, err := ex.Execute(ctx, "create_class", classWithTimes("10:00", clock), "tok")
			return apperr.Is(err, apperr.KindValidation) && len(stub.calls) == 0
		},
		gen.IntRange(0, 23),
		gen.IntRange(60, 99),
	))

	properties.Property("single-digit hours are rejected", prop.ForAll(
		func(h, m int) bool {
			ex, stub := newTestExecutor()
			clock := fmt.Sprintf("%d:%02d", h, m)
			_, err := ex.Execute(ctx, "create_class", classWithTimes(clock, "10:00"), "tok")
			return apperr.Is(err, apperr.KindValidation) && len(stub.calls) == 0
		},
		gen.IntRange(0, 9),
		gen.IntRange(0, 59),
	))

	properties.TestingRun(t)
}
