package auth

import "github.com/launchpadhq/launchpad/internal/core/domain"

// =============================================================================
// Project Authorization
// =============================================================================

// CanViewProject checks if the principal can view a project.
// Projects are private to their owner.
func CanViewProject(ctx Context, project domain.Project) bool {
	return ctx.Authenticated && ctx.PrincipalID == project.OwnerID
}

// CanManageProject checks if the principal can deploy, edit or delete a
// project. Only the owner can.
func CanManageProject(ctx Context, project domain.Project) bool {
	return ctx.Authenticated && ctx.PrincipalID == project.OwnerID
}
