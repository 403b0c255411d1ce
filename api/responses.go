package api

import (
	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/audit"
)

// ResolveResponse is the outcome of resolving a command.
type ResolveResponse struct {
	Allowed         bool   `json:"allowed" description:"Whether the command may run"`
	Decision        string `json:"decision" description:"Decision code"`
	Reason          string `json:"reason,omitempty" description:"Human-readable reason"`
	GrantedBy       string `json:"granted_by,omitempty" description:"Role that granted the command"`
	SnapshotVersion int64  `json:"snapshot_version" description:"Audit head the decision was made against"`
}

// ActorResponse is an actor's authorization record.
type ActorResponse struct {
	*assignment.Assignment
	Team bool `json:"team" description:"Whether the actor holds any role"`
}

// AuditPage is one page of the audit log.
type AuditPage struct {
	Records []*audit.Record `json:"records" description:"Records in ascending sequence"`
	NextSeq int64           `json:"next_seq,omitempty" description:"Cursor for the next page; zero when exhausted"`
}

// VerifyResponse reports the result of walking the audit hash chain.
type VerifyResponse struct {
	Intact   bool   `json:"intact" description:"Whether the chain verified"`
	Records  int64  `json:"records" description:"Records verified"`
	HeadSeq  int64  `json:"head_seq" description:"Last verified sequence"`
	HeadHash string `json:"head_hash" description:"Last verified hash"`
	Error    string `json:"error,omitempty" description:"First break found"`
}

// ErrorResponse is written for conflicts and infrastructure failures.
type ErrorResponse struct {
	Error string `json:"error" description:"Error message"`
	Code  string `json:"code" description:"Machine-readable code"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}
