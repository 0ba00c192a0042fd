package dto

// CreateActorRequest registers an actor in the caller's tenant. Role accepts
// canonical names and school aliases (principal, teacher, ...).
type CreateActorRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"fullName" validate:"required,min=1,max=120"`
	Role     string `json:"role" validate:"required"`
}

// ActorQuery mirrors actor listing filters.
type ActorQuery struct {
	Role     string `form:"role"`
	Active   *bool  `form:"active"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// CommentRequest is the public comment payload.
type CommentRequest struct {
	AuthorName string `json:"authorName" validate:"omitempty,max=120"`
	Body       string `json:"body" validate:"required,min=1,max=2000"`
}
