package service

import (
	"sort"
	"strings"

	"github.com/rapidrecall/dashboard/internal/core/domain"
)

// RecallStatus filters the recall table.
type RecallStatus string

const (
	StatusAll            RecallStatus = ""
	StatusAcknowledged   RecallStatus = "acknowledged"
	StatusUnacknowledged RecallStatus = "unacknowledged"
	StatusReviewed       RecallStatus = "reviewed"
	StatusPending        RecallStatus = "pending"
)

// RecallSort orders the recall table.
type RecallSort string

const (
	SortReceivedDesc RecallSort = ""
	SortReceivedAsc  RecallSort = "received_asc"
	SortCreatedDesc  RecallSort = "created_desc"
	SortCreatedAsc   RecallSort = "created_asc"
)

// RecallQuery holds the table's search, filter and sort state.
type RecallQuery struct {
	Search string       `query:"q"`
	Status RecallStatus `query:"status" validate:"omitempty,oneof=acknowledged unacknowledged reviewed pending"`
	Sort   RecallSort   `query:"sort"   validate:"omitempty,oneof=received_asc created_desc created_asc"`
}

// FilterRecalls applies q to records and returns a new slice.
func FilterRecalls(records []domain.RecallRecord, q RecallQuery) []domain.RecallRecord {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]domain.RecallRecord, 0, len(records))
	for _, r := range records {
		if !matchesStatus(r, q.Status) {
			continue
		}
		if needle != "" && !matchesSearch(r, needle) {
			continue
		}
		out = append(out, r)
	}
	sortRecalls(out, q.Sort)
	return out
}

func matchesStatus(r domain.RecallRecord, s RecallStatus) bool {
	switch s {
	case StatusAcknowledged:
		return r.Acknowledged()
	case StatusUnacknowledged:
		return !r.Acknowledged()
	case StatusReviewed:
		return r.Reviewed()
	case StatusPending:
		return !r.Reviewed()
	default:
		return true
	}
}

func matchesSearch(r domain.RecallRecord, needle string) bool {
	fields := []string{
		r.ID,
		r.Result.ProductName,
		r.Result.Manufacturer,
		r.ClassificationOrDefault(),
		r.Result.ItemNumber,
		r.Result.LotCode,
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func sortRecalls(rs []domain.RecallRecord, by RecallSort) {
	sort.SliceStable(rs, func(i, j int) bool {
		switch by {
		case SortReceivedAsc:
			return rs[i].ReceivedAt().Before(rs[j].ReceivedAt())
		case SortCreatedDesc:
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		case SortCreatedAsc:
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		default:
			return rs[i].ReceivedAt().After(rs[j].ReceivedAt())
		}
	})
}
