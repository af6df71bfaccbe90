package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nftmarket/explorer"
)

// Formats accepted by Settlements.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// Settlements serialises indexed settlements in the requested format and
// returns the payload alongside its SHA-256 checksum.
func Settlements(format string, rows []explorer.Settlement) ([]byte, string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatCSV:
		return SettlementsCSV(rows)
	case FormatJSONL:
		return SettlementsJSONL(rows)
	default:
		return nil, "", fmt.Errorf("exports: unsupported format %q", format)
	}
}

var csvHeader = []string{"listing", "kind", "asset", "seller", "buyer", "price", "royalty", "proceeds", "settled_at"}

// SettlementsCSV builds a CSV export with a header row.
func SettlementsCSV(rows []explorer.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(csvHeader); err != nil {
		return nil, "", err
	}
	for _, row := range rows {
		record := []string{
			row.ListingID,
			row.Kind,
			row.Asset,
			row.Seller,
			row.Buyer,
			amount(row.Price),
			amount(row.Royalty),
			amount(row.Proceeds),
			row.SettledAt.UTC().Format(time.RFC3339Nano),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	return checksummed(buffer.Bytes())
}

// SettlementsJSONL builds a JSON Lines export, one settlement per line.
func SettlementsJSONL(rows []explorer.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range rows {
		payload := map[string]interface{}{
			"listing":    row.ListingID,
			"kind":       row.Kind,
			"asset":      row.Asset,
			"seller":     row.Seller,
			"buyer":      row.Buyer,
			"price":      amount(row.Price),
			"royalty":    amount(row.Royalty),
			"proceeds":   amount(row.Proceeds),
			"settled_at": row.SettledAt.UTC().Format(time.RFC3339Nano),
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	return checksummed(buffer.Bytes())
}

func checksummed(data []byte) ([]byte, string, error) {
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

func amount(raw string) string {
	if raw == "" {
		return "0"
	}
	return raw
}
