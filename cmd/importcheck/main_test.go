package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunPrintsPlanSummary(t *testing.T) {
	path := writeFile(t, "plans.csv",
		"espece,nom_scientifique,activite,taches,responsable,date_debut_taches,date_fin_taches,budget_annee_1\n"+
			"Lion,Panthera leo,Suivi,Recensement,Dr. Martin,2025-01-01,2025-06-30,100\n"+
			"Lion,Panthera leo,Suivi,Colliers,Dr. Martin,2025-13-01,2025-06-30,100\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-file", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var summary map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, 1.0, summary["count"])
	assert.Equal(t, 1.0, summary["skipped"])
	assert.Equal(t, []any{"row 3: invalid dates"}, summary["skipped_details"])
}

func TestRunSpecies(t *testing.T) {
	path := writeFile(t, "species.csv", "Nom commun;Nom scientifique\nLion;Panthera leo\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-kind", "species", "-file", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), `"Lion"`)
}

func TestRunBatchFailure(t *testing.T) {
	path := writeFile(t, "plans.csv", "espece,activite\nLion,Suivi\n")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-file", path}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "missing columns")
	assert.Empty(t, stdout.String())
}

func TestRunUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"-file", "x.csv", "-kind", "birds"}, &stdout, &stderr))
}
