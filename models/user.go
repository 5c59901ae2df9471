package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	RoleReader    = "reader"
	RolePublisher = "publisher"
	RoleAdmin     = "admin"
)

// Owner is a registered user as stored by the auth service.
type Owner struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	UserName string             `bson:"userName" json:"userName"`
	Email    string             `bson:"email" json:"email"`
	Role     string             `bson:"role" json:"role"`
}

type OwnerSummary struct {
	ID       primitive.ObjectID `json:"id"`
	UserName string             `json:"userName"`
	Email    string             `json:"email"`
}

func (o *Owner) Summary() *OwnerSummary {
	return &OwnerSummary{ID: o.ID, UserName: o.UserName, Email: o.Email}
}
