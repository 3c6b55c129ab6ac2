package service

import (
	"fmt"

	"securedocs/internal/domain"
)

// Operation is a role-gated action.
type Operation string

const (
	OperationUpload          Operation = "upload"
	OperationListFiles       Operation = "list_files"
	OperationListUploaded    Operation = "list_uploaded"
	OperationRequestDownload Operation = "request_download"
	OperationRedeemDownload  Operation = "redeem_download"
	OperationViewHistory     Operation = "view_history"
	OperationListUsers       Operation = "list_users"
	OperationViewProfile     Operation = "view_profile"
)

// allowedRoles lists, per operation, who may perform it.
func allowedRoles(op Operation) []domain.Role {
	switch op {
	case OperationUpload, OperationListUploaded, OperationListUsers:
		return []domain.Role{domain.RoleOps}
	case OperationListFiles, OperationRequestDownload, OperationRedeemDownload, OperationViewHistory:
		return []domain.Role{domain.RoleClient}
	case OperationViewProfile:
		return []domain.Role{domain.RoleOps, domain.RoleClient}
	default:
		return nil
	}
}

// Authorize returns nil when role may perform op and a domain.ErrForbidden otherwise.
func Authorize(role domain.Role, op Operation) error {
	for _, allowed := range allowedRoles(op) {
		if role == allowed {
			return nil
		}
	}
	return domain.Detailed(domain.ErrForbidden, forbiddenMessage(op))
}

func forbiddenMessage(op Operation) string {
	switch op {
	case OperationUpload:
		return "Only operations users can upload files"
	case OperationListUploaded:
		return "Only operations users can view uploaded files"
	case OperationListUsers:
		return "Only operations users can list users"
	case OperationListFiles:
		return "Only client users can list files"
	case OperationRequestDownload, OperationRedeemDownload:
		return "Only client users can download files"
	case OperationViewHistory:
		return "Only client users can view download history"
	default:
		return fmt.Sprintf("Operation %q is not permitted", op)
	}
}
