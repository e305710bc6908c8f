package purchase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storefront-api/internal/apperr"
)

func TestCancelRequestItemMachine(t *testing.T) {
	req := &CancelRequest{
		Number: "2506024000001",
		Items: []CancelRequestItem{
			{OrderNumber: "O1", SimpleSKU: "A-M", Qty: 1, Status: CancelPendingApproval},
		},
	}

	require.NoError(t, req.TransitionItem("O1", "A-M", CancelApproved))

	// Approved is terminal.
	err := req.TransitionItem("O1", "A-M", CancelDeclined)
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))

	_, err = req.Item("O1", "GHOST")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestReturnRequestItemMachine(t *testing.T) {
	newReq := func(status ReturnItemStatus) *ReturnRequest {
		return &ReturnRequest{
			Number: "2506025000001",
			Items: []ReturnRequestItem{
				{OrderNumber: "O1", SimpleSKU: "A-M", Qty: 1, Status: status},
			},
		}
	}

	tests := []struct {
		from    ReturnItemStatus
		to      ReturnItemStatus
		allowed bool
	}{
		{ReturnPendingApproval, ReturnApproved, true},
		{ReturnPendingApproval, ReturnCancelled, true},
		{ReturnPendingApproval, ReturnRejected, true},
		{ReturnPendingApproval, ReturnClosed, false},
		{ReturnApproved, ReturnPackageSent, true},
		{ReturnApproved, ReturnRejected, true},
		{ReturnApproved, ReturnClosed, true},
		{ReturnApproved, ReturnCancelled, false},
		{ReturnPackageSent, ReturnClosed, true},
		{ReturnPackageSent, ReturnRejected, false},
		{ReturnClosed, ReturnApproved, false},
	}

	for _, tt := range tests {
		req := newReq(tt.from)
		err := req.TransitionItem("O1", "A-M", tt.to)
		if tt.allowed {
			require.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic), "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestCancelRequestTotalStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []CancelItemStatus
		want     CancelItemStatus
	}{
		{"all pending", []CancelItemStatus{CancelPendingApproval, CancelPendingApproval}, CancelPendingApproval},
		{"all approved", []CancelItemStatus{CancelApproved, CancelApproved}, CancelApproved},
		{"pending outlives approved", []CancelItemStatus{CancelApproved, CancelPendingApproval}, CancelPendingApproval},
		{"pending outlives declined", []CancelItemStatus{CancelDeclined, CancelPendingApproval}, CancelPendingApproval},
		{"approved outlives declined", []CancelItemStatus{CancelDeclined, CancelApproved}, CancelApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &CancelRequest{}
			for i, s := range tt.statuses {
				req.Items = append(req.Items, CancelRequestItem{SimpleSKU: string(rune('A' + i)), Status: s})
			}
			require.Equal(t, tt.want, req.TotalStatus())
		})
	}
}

func TestReturnRequestTotalStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []ReturnItemStatus
		want     ReturnItemStatus
	}{
		{"all pending", []ReturnItemStatus{ReturnPendingApproval}, ReturnPendingApproval},
		{"pending outlives closed", []ReturnItemStatus{ReturnClosed, ReturnPendingApproval}, ReturnPendingApproval},
		{"approved outlives closed", []ReturnItemStatus{ReturnClosed, ReturnApproved}, ReturnApproved},
		{"package sent outlives closed", []ReturnItemStatus{ReturnClosed, ReturnPackageSent}, ReturnPackageSent},
		{"closed outlives cancelled", []ReturnItemStatus{ReturnCancelled, ReturnClosed}, ReturnClosed},
		{"mixed open and settled", []ReturnItemStatus{ReturnCancelled, ReturnRejected, ReturnClosed, ReturnApproved}, ReturnApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &ReturnRequest{}
			for i, s := range tt.statuses {
				req.Items = append(req.Items, ReturnRequestItem{SimpleSKU: string(rune('A' + i)), Status: s})
			}
			require.Equal(t, tt.want, req.TotalStatus())
		})
	}
}
