// Package statusmap is the per-provider vocabulary translator (C6): it maps
// a provider's own raw status strings onto the system's internal state
// machine, normalizes shape differences between providers' raw responses,
// and computes minimal persistence patches from the result.
package statusmap

import (
	"github.com/groundx/refillsvc/catalog"
	"github.com/groundx/refillsvc/provider"
)

// vocab is the exhaustive per-provider raw→internal table (§4.6). Any raw
// status absent from a provider's table defaults to PROCESSING.
var vocab = map[string]map[string]string{
	provider.Liminal: {
		"1": catalog.StatusProcessing,
		"2": catalog.StatusProcessing,
		"4": catalog.StatusCompleted,
		"5": catalog.StatusFailed,
	},
	provider.Fireblocks: {
		"SUBMITTED":                         catalog.StatusProcessing,
		"PENDING_AML_SCREENING":             catalog.StatusProcessing,
		"PENDING_ENRICHMENT":                catalog.StatusProcessing,
		"PENDING_AUTHORIZATION":             catalog.StatusProcessing,
		"QUEUED":                            catalog.StatusProcessing,
		"PENDING_SIGNATURE":                 catalog.StatusProcessing,
		"PENDING_3RD_PARTY_MANUAL_APPROVAL": catalog.StatusProcessing,
		"PENDING_3RD_PARTY":                 catalog.StatusProcessing,
		"BROADCASTING":                      catalog.StatusProcessing,
		"CONFIRMING":                        catalog.StatusProcessing,
		"CANCELLING":                        catalog.StatusProcessing,
		"COMPLETED":                         catalog.StatusCompleted,
		"CANCELLED":                         catalog.StatusFailed,
		"BLOCKED":                           catalog.StatusFailed,
		"REJECTED":                          catalog.StatusFailed,
		"FAILED":                            catalog.StatusFailed,
	},
}

// MapStatus translates a provider's raw status to the internal state
// machine. An unrecognized raw status (or provider) defaults to PROCESSING,
// per §4.6: "unknown raw status defaults to PROCESSING".
func MapStatus(providerName, rawStatus string) string {
	table, ok := vocab[providerName]
	if !ok {
		return catalog.StatusProcessing
	}
	if internal, ok := table[rawStatus]; ok {
		return internal
	}
	return catalog.StatusProcessing
}

// Snapshot is the extractor's normalized output (§4.6): "{provider_tx_id?,
// tx_hash?, raw_status, message?, raw_response}".
type Snapshot struct {
	ProviderTxID string
	TxHash       string
	RawStatus    string
	Message      string
	RawResponse  map[string]interface{}
}

// Extract normalizes a provider.RawTransaction (or the acceptance response
// from CreateTransferRequest, via FromTransferResponse) into a Snapshot.
// The per-provider shape differences are absorbed at the provider-adapter
// layer already (provider.RawTransaction is already uniform), so this is a
// direct field copy — kept as its own step so future providers with nested
// "data:" shapes can be absorbed here without touching callers.
func Extract(raw provider.RawTransaction) Snapshot {
	return Snapshot{
		ProviderTxID: raw.ProviderTxID,
		TxHash:       raw.TxHash,
		RawStatus:    raw.RawStatus,
		Message:      raw.Message,
		RawResponse:  raw.Raw,
	}
}

// FromTransferResponse extracts a Snapshot from a freshly accepted transfer,
// used by the orchestrator (C5) right after CreateTransferRequest returns.
func FromTransferResponse(resp provider.TransferResponse) Snapshot {
	return Snapshot{
		ProviderTxID: resp.ProviderTxID,
		RawStatus:    resp.RawStatus,
		Message:      resp.Message,
		RawResponse:  resp.Raw,
	}
}

// Patch is the minimal set of persisted-row changes a Diff produces.
type Patch struct {
	Status         *string
	ProviderStatus *string
	TxHash         *string
	Message        *string
	ProviderData   map[string]interface{}
	HasChanges     bool
}

// Diff computes the patch between a persisted row and a freshly extracted
// snapshot (§4.6). Rules:
//   - status is included only if the mapped internal status differs from
//     the row's current status — provider_status can refine without
//     triggering an internal transition.
//   - provider_data is included whenever provider_status changes.
//   - null/empty incoming fields never overwrite a non-empty stored field.
func Diff(row *catalog.RefillTransaction, providerName string, snap Snapshot) Patch {
	var patch Patch

	mappedStatus := MapStatus(providerName, snap.RawStatus)
	if mappedStatus != row.Status {
		s := mappedStatus
		patch.Status = &s
		patch.HasChanges = true
	}

	if snap.RawStatus != "" && snap.RawStatus != row.ProviderStatus {
		ps := snap.RawStatus
		patch.ProviderStatus = &ps
		patch.HasChanges = true
		if snap.RawResponse != nil {
			patch.ProviderData = snap.RawResponse
		}
	}

	if snap.TxHash != "" && snap.TxHash != row.TxHash {
		h := snap.TxHash
		patch.TxHash = &h
		patch.HasChanges = true
	}

	if snap.Message != "" && snap.Message != row.Message {
		m := snap.Message
		patch.Message = &m
		patch.HasChanges = true
	}

	return patch
}
