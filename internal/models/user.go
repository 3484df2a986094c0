package models

import "time"

// User is the local, authoritative record for an IdP-federated identity.
// ExternalID is the federation key (the subject identifier issued by the IdP)
// and is unique across the collection. ID is assigned by the store, is numeric
// and is never reused.
type User struct {
	ID         int64     `bson:"_id" json:"id"`
	ExternalID string    `bson:"externalId" json:"externalId"`
	Email      string    `bson:"email" json:"email"`
	Username   string    `bson:"username" json:"username"`
	FullName   string    `bson:"fullName,omitempty" json:"fullName,omitempty"`
	Confirmed  bool      `bson:"confirmed" json:"confirmed"`
	RoleID     int64     `bson:"roleId,omitempty" json:"roleId,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Role mirrors the host application's role collection. Federated users are
// assigned the role with Type == DefaultRoleType at creation time.
type Role struct {
	ID   int64  `bson:"_id" json:"id"`
	Type string `bson:"type" json:"type"`
	Name string `bson:"name" json:"name"`
}

// DefaultRoleType is the role type assigned to newly provisioned users.
const DefaultRoleType = "authenticated"
