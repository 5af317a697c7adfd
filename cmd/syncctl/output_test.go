package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/infrastructure/auth"
	"github.com/erp/marketsync/internal/infrastructure/config"
)

func TestNewPrinter(t *testing.T) {
	p, err := newPrinter(&bytes.Buffer{}, "")
	require.NoError(t, err)
	assert.Equal(t, formatTable, p.format)

	p, err = newPrinter(&bytes.Buffer{}, " JSON ")
	require.NoError(t, err)
	assert.Equal(t, formatJSON, p.format)

	_, err = newPrinter(&bytes.Buffer{}, "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestPrinter_Formats(t *testing.T) {
	stats := fiscal.QueueStats{Pending: 3, Failing: 1, Processed: 12}
	header := table.Row{"Pending", "Failing", "Processed"}
	rows := []table.Row{{stats.Pending, stats.Failing, stats.Processed}}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, formatTable)
		require.NoError(t, err)
		require.NoError(t, p.print(stats, header, rows))

		out := buf.String()
		assert.Contains(t, out, "PENDING")
		assert.Contains(t, out, "12")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, formatJSON)
		require.NoError(t, err)
		require.NoError(t, p.print(stats, header, rows))

		var got fiscal.QueueStats
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, stats, got)
	})

	t.Run("yaml uses json field names", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, formatYAML)
		require.NoError(t, err)
		require.NoError(t, p.print(stats, header, rows))

		var got map[string]int
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, map[string]int{"pending": 3, "failing": 1, "processed": 12}, got)
	})
}

func TestSummarizeMasksSecrets(t *testing.T) {
	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: "super-secret"},
		Fiscal:  config.FiscalConfig{APIKey: "bling-key"},
		Secrets: config.SecretsConfig{},
	}

	values := make(map[string]string)
	for _, s := range summarize(cfg) {
		values[s.Key] = s.Value
	}

	assert.Equal(t, "(set)", values["jwt.secret"])
	assert.Equal(t, "(set)", values["fiscal.api_key"])
	assert.Equal(t, "(unset)", values["secrets.master_key"])
	for _, v := range values {
		assert.NotContains(t, v, "super-secret")
		assert.NotContains(t, v, "bling-key")
	}
}

func TestIssueToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "cli-secret", Issuer: "marketsync", TokenExpiration: time.Hour}

	issued, err := issueToken(cfg, "ops", []string{"fiscal"}, 10*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), issued.ExpiresAt, 5*time.Second)

	claims, err := auth.NewJWTService(cfg).ValidateToken(issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
	assert.True(t, claims.HasScope("fiscal"))
	assert.False(t, claims.HasScope("scheduler"))

	_, err = issueToken(cfg, " ", nil, 0)
	assert.ErrorIs(t, err, auth.ErrMissingOperator)
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"token", "sync", "drain", "queue", "orders", "jobs", "config"})

	root.SetArgs([]string{"--output", "xml", "token"})
	root.SetOut(&bytes.Buffer{})
	assert.NoError(t, root.Execute())
}
