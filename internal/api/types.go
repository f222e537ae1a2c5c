// Package api contains types for the API requests and responses.
package api

import "github.com/kylejryan/claims-manager/internal/models"

// CreateClaimRequest represents the request payload for opening a claim.
type CreateClaimRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// StatusUpdateRequest asks for a claim status transition.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// DamageResponse is a damage as returned to clients.
type DamageResponse struct {
	ID       string          `json:"id"`
	ClaimID  string          `json:"claim_id"`
	Part     string          `json:"part"`
	Severity models.Severity `json:"severity"`
	ImageURL string          `json:"image_url"`
	Price    models.Price    `json:"price"`
	Score    models.Score    `json:"score"`
}

// ClaimResponse is a claim with its damages and their total.
type ClaimResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description *string            `json:"description"`
	Status      models.ClaimStatus `json:"status"`
	Damages     []DamageResponse   `json:"damages"`
	TotalAmount models.Price       `json:"total_amount"`
}

// ImageUploadRequest represents the request payload for presigning a damage photo upload.
type ImageUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// ImageUploadResponse carries the presigned S3 PUT and the URL to store on the damage.
type ImageUploadResponse struct {
	ClaimID       string            `json:"claim_id"`
	S3Key         string            `json:"s3_key"`
	UploadURL     string            `json:"upload_url"`
	ImageURL      string            `json:"image_url"`
	ExpiresIn     int               `json:"expires_in"`
	ContentType   string            `json:"content_type"`
	UploadHeaders map[string]string `json:"upload_headers"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// NewDamageResponse converts a stored damage.
func NewDamageResponse(d models.Damage) DamageResponse {
	return DamageResponse{
		ID: d.ID, ClaimID: d.ClaimID, Part: d.Part, Severity: d.Severity,
		ImageURL: d.ImageURL, Price: d.Price, Score: d.Score,
	}
}

// NewDamageResponses converts a list, never returning nil.
func NewDamageResponses(ds []models.Damage) []DamageResponse {
	out := make([]DamageResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, NewDamageResponse(d))
	}
	return out
}

// NewClaimResponse converts a claim and computes its total.
func NewClaimResponse(c models.Claim) ClaimResponse {
	return ClaimResponse{
		ID: c.ID, Title: c.Title, Description: c.Description, Status: c.Status,
		Damages:     NewDamageResponses(c.Damages),
		TotalAmount: c.TotalAmount(),
	}
}

// NewClaimResponses converts a list, never returning nil.
func NewClaimResponses(cs []models.Claim) []ClaimResponse {
	out := make([]ClaimResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, NewClaimResponse(c))
	}
	return out
}
