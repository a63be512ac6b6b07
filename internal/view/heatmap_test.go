package view

import (
	"bytes"
	"strings"
	"testing"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/patrol.report/internal/grid"
)

func TestRiskHeatmapPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := RiskHeatmapPNG(fixture(t), &buf, 3*vg.Inch); err != nil {
		t.Fatalf("RiskHeatmapPNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("output is not a PNG (%d bytes)", buf.Len())
	}
}

func TestRiskHeatmapPNG_SingleCell(t *testing.T) {
	m, _ := grid.NewModel(1)
	var buf bytes.Buffer
	if err := RiskHeatmapPNG(m, &buf, 2*vg.Inch); err != nil {
		t.Fatalf("RiskHeatmapPNG: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected image data")
	}
}

func TestRiskHeatmapChart(t *testing.T) {
	var buf bytes.Buffer
	if err := RiskHeatmapChart(fixture(t), &buf); err != nil {
		t.Fatalf("RiskHeatmapChart: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"Patrol Area Risk", "grid=3 passable=8 animals=1", "triangle", "echarts.min.js"} {
		if !strings.Contains(html, want) {
			t.Errorf("chart page missing %q", want)
		}
	}
}
