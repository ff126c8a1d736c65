package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONB(t *testing.T) {
	t.Run("scans bytes", func(t *testing.T) {
		var v JSONB[map[string]any]
		require.NoError(t, v.Scan([]byte(`{"paymentId":"pi_1"}`)))
		assert.Equal(t, "pi_1", v.GetValue()["paymentId"])
	})

	t.Run("scans nil as zero value", func(t *testing.T) {
		var v JSONB[[]string]
		require.NoError(t, v.Scan(nil))
		assert.Nil(t, v.Data)
	})

	t.Run("rejects unsupported types", func(t *testing.T) {
		var v JSONB[[]string]
		assert.Error(t, v.Scan(42))
	})

	t.Run("values round through driver.Value", func(t *testing.T) {
		v := NewJSONB([]string{"reg_1", "reg_2"})
		raw, err := v.Value()
		require.NoError(t, err)
		assert.JSONEq(t, `["reg_1","reg_2"]`, string(raw.([]byte)))
	})
}

func TestOnConflict(t *testing.T) {
	ib := NewInsertBuilder()
	ib.InsertInto("match_results")
	ib.Cols("payment_id", "confidence")
	ib.Values("pay_1", 62)
	ib.OnConflict([]string{"payment_id"}, []string{"confidence = " + Excluded("confidence")}, "match_results.status = 'pending'")

	query, args := ib.Build()
	assert.Contains(t, query, "INSERT INTO match_results (payment_id, confidence) VALUES ($1, $2)")
	assert.Contains(t, query, "ON CONFLICT (payment_id) DO UPDATE SET confidence = EXCLUDED.confidence WHERE match_results.status = 'pending'")
	assert.Equal(t, []any{"pay_1", 62}, args)
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(sql.ErrNoRows))
	assert.True(t, IsNoRows(fmt.Errorf("wrapped: %w", sql.ErrNoRows)))
	assert.False(t, IsNoRows(fmt.Errorf("boom")))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows))
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "clover", Password: "secret", Name: "clover"}
	assert.Equal(t, "host=db port=5432 user=clover password=secret dbname=clover sslmode=disable", cfg.DSN())
}

func TestLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql", "000003_invoices.up.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	version, err := latestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	_, err = latestVersion(t.TempDir())
	assert.Error(t, err)
}
