package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertFile struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestDocumentAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "documents.yml"))
	require.NoError(t, err)

	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))

	var group *alertGroup
	for i := range file.Groups {
		if file.Groups[i].Name == "documents" {
			group = &file.Groups[i]
			break
		}
	}
	require.NotNil(t, group, "documents alert group missing")

	expected := map[string]struct {
		severity string
		metric   string
	}{
		"HighErrorRate":       {severity: "critical", metric: "backoffice_http_requests_total"},
		"ExpirySweepFailing":  {severity: "warning", metric: "backoffice_sweep_failures_total"},
		"ExpirySweepNotRun":   {severity: "warning", metric: "backoffice_jobs_total"},
		"NumberingExhaustion": {severity: "critical", metric: "backoffice_http_requests_total"},
	}
	require.Len(t, group.Rules, len(expected))

	for _, rule := range group.Rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		require.True(t, strings.Contains(rule.Expr, want.metric), "rule %s must reference %s", rule.Alert, want.metric)
		require.NotEmpty(t, rule.For, rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
	}
}
