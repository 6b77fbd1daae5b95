package app

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/heronai/heron/internal/config"
	"github.com/heronai/heron/internal/log"
	"github.com/heronai/heron/internal/pipeline"
)

func TestAppClose_ReverseOrder(t *testing.T) {
	var order []string
	a := &App{Logger: log.NewNop()}
	a.cleanups = append(a.cleanups,
		func() { order = append(order, "pool") },
		func() { order = append(order, "tracer") },
	)

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if diff := cmp.Diff([]string{"tracer", "pool"}, order); diff != "" {
		t.Errorf("cleanup order mismatch (-want +got):\n%s", diff)
	}

	// A second Close must not run the cleanups again.
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if len(order) != 2 {
		t.Errorf("cleanups ran twice, order = %v", order)
	}
}

func TestQualifyModel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"googleai/gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"vertexai/gemini-2.5-pro", "vertexai/gemini-2.5-pro"},
	}
	for _, tt := range tests {
		if got := qualifyModel(tt.in); got != tt.want {
			t.Errorf("qualifyModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPipelineConfig(t *testing.T) {
	cfg := &config.Config{
		Pipeline: config.PipelineConfig{
			CasualTemperature:    0.9,
			HistoryTemperature:   0.4,
			RetrievalTemperature: 0.1,
			RetrievalTopK:        7,
			HistoryWindow:        3,
			WebResults:           2,
			ClassifyQueries:      true,
			CheckHistory:         false,
		},
	}

	want := pipeline.Config{
		CasualTemperature:    0.9,
		HistoryTemperature:   0.4,
		RetrievalTemperature: 0.1,
		RetrievalTopK:        7,
		WebResults:           2,
		ClassifyQueries:      true,
		CheckHistory:         false,
	}
	if diff := cmp.Diff(want, pipelineConfig(cfg)); diff != "" {
		t.Errorf("pipelineConfig() mismatch (-want +got):\n%s", diff)
	}
}
