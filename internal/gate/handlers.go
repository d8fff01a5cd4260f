package gate

import "context"

// AutoApproveHandler approves every request without interaction. Useful
// as the ask-mode handler in trusted environments and in tests.
type AutoApproveHandler struct{}

// RequestApproval implements ApprovalHandler.
func (AutoApproveHandler) RequestApproval(_ context.Context, _ ApprovalRequest) (ApprovalResponse, error) {
	return ApprovalResponse{Approved: true, Reason: "auto-approved"}, nil
}

// DenyHandler declines every request. Useful for lockdown and tests.
type DenyHandler struct {
	Reason string
}

// RequestApproval implements ApprovalHandler.
func (h DenyHandler) RequestApproval(_ context.Context, _ ApprovalRequest) (ApprovalResponse, error) {
	reason := h.Reason
	if reason == "" {
		reason = "denied by policy"
	}
	return ApprovalResponse{Approved: false, Reason: reason}, nil
}

// FuncHandler adapts a function to the ApprovalHandler interface.
type FuncHandler func(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)

// RequestApproval implements ApprovalHandler.
func (f FuncHandler) RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
	return f(ctx, req)
}
