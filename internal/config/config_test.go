package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpattn/orderdesk/internal/orders"
	"github.com/rpattn/orderdesk/internal/routing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
source:
  kind: csv
  path: /srv/orders.csv
  mapping: named
  cache_ttl: 2m
  headers:
    order_number: ["Order Ref"]
dispatch:
  bulk_threshold: 5
  courier_email: courier@desk.test
suppliers:
  - kind: prefix
    pattern: PO-
    supplier:
      name: Acme
      email: orders@acme.test
  - kind: digits
    pattern: "9"
    length: 6
    supplier:
      name: Nine
      email: nine@example.test
templates:
  - name: ping
    channel: chat
    body: "hi {{.Order.FirstName}}"
`

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
	require.Equal(t, SourceXLSX, cfg.Source.Kind)
	require.Equal(t, orders.DefaultCacheTTL, cfg.Source.CacheTTL)
	require.Equal(t, orders.DefaultBulkThreshold, cfg.Dispatch.BulkThreshold)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleConfig), 0o600))
	t.Setenv("ORDERDESK_SERVER_ADDR", ":9999")

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, ":9999", cfg.Server.Addr)
	require.Equal(t, SourceCSV, cfg.Source.Kind)
	require.Equal(t, 2*time.Minute, cfg.Source.CacheTTL)
	require.Equal(t, 5, cfg.Dispatch.BulkThreshold)
	require.Equal(t, "courier@desk.test", cfg.Dispatch.CourierEmail)

	require.Len(t, cfg.Suppliers, 2)
	require.Equal(t, routing.RuleDigits, cfg.Suppliers[1].Kind)
	require.Equal(t, 6, cfg.Suppliers[1].Length)
	require.Equal(t, "orders@acme.test", cfg.Suppliers[0].Supplier.Email)

	require.Len(t, cfg.Templates, 1)
	require.Equal(t, "ping", cfg.Templates[0].Name)

	mapping := cfg.OrderMapping()
	require.Equal(t, "Order Ref", mapping.Headers[orders.FieldOrderNumber][0])
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source.Kind = "ods"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Source.Path = ""
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Source.Mapping = "guess"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Source.Kind = SourceSQLite
	cfg.Source.Path = ""
	require.NoError(t, cfg.Validate())
}

func TestPositionalMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source.Mapping = MappingPositional
	require.True(t, cfg.OrderMapping().Positional())
}
