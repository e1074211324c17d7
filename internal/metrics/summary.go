package metrics

import (
	"sort"
	"time"

	"netstatus/internal/models"
)

// AddressCount counts how often an address was published.
type AddressCount struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
}

// AddressSummary aggregates the published IP_ADDRESS history.
type AddressSummary struct {
	TotalMessages     int            `json:"total_messages"`
	DistinctAddresses int            `json:"distinct_addresses"`
	Changes           int            `json:"changes"`
	EmptyAddresses    int            `json:"empty_addresses"`
	LastAddress       string         `json:"last_address,omitempty"`
	LastUpdated       string         `json:"last_updated,omitempty"`
	Addresses         []AddressCount `json:"addresses"`
}

// Summarize aggregates locally published IP_ADDRESS messages from history
// entries. Relayed entries and other keys are ignored. A change is counted whenever the address differs
// from the previous one.
func Summarize(entries []models.StatusEntry) AddressSummary {
	counts := make(map[string]int)
	summary := AddressSummary{}

	var (
		last     string
		lastTime time.Time
		seen     bool
	)
	for _, entry := range entries {
		if !entry.Local() || entry.Message.Key != models.StatusKeyIPAddress {
			continue
		}
		addr := entry.Message.Value
		summary.TotalMessages++
		if addr == "" {
			summary.EmptyAddresses++
		}
		if seen && addr != last {
			summary.Changes++
		}
		counts[addr]++
		last = addr
		lastTime = entry.Timestamp
		seen = true
	}
	if !seen {
		return summary
	}

	summary.LastAddress = last
	summary.LastUpdated = lastTime.UTC().Format(time.RFC3339)
	summary.DistinctAddresses = len(counts)

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	summary.Addresses = make([]AddressCount, 0, len(keys))
	for _, k := range keys {
		summary.Addresses = append(summary.Addresses, AddressCount{Address: k, Count: counts[k]})
	}
	return summary
}
