package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"toolforge/internal/gate"
)

// promptHandler asks the operator on the terminal. Anything but an
// explicit yes declines.
type promptHandler struct{}

func (promptHandler) RequestApproval(ctx context.Context, req gate.ApprovalRequest) (gate.ApprovalResponse, error) {
	fmt.Fprintf(os.Stderr, "Execute %s with input %v? [y/N] ", req.PrimitiveName, req.Input)

	answerCh := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		answerCh <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case answer := <-answerCh:
		if answer == "y" || answer == "yes" {
			return gate.ApprovalResponse{Approved: true, Reason: "operator approved"}, nil
		}
		return gate.ApprovalResponse{Approved: false, Reason: "operator declined"}, nil
	case <-ctx.Done():
		return gate.ApprovalResponse{}, ctx.Err()
	}
}
