package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Book is a catalog entry. This service only reads the books collection.
type Book struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Author    string             `bson:"author" json:"author"`
	Image     string             `bson:"image,omitempty" json:"image,omitempty"`
	Price     Money              `bson:"price" json:"price"`
	Category  string             `bson:"category,omitempty" json:"category,omitempty"`
	Status    string             `bson:"status,omitempty" json:"status,omitempty"`
	CreatedAt time.Time          `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// BookSummary is the display projection attached to cart and order items.
type BookSummary struct {
	ID     primitive.ObjectID `json:"id"`
	Title  string             `json:"title"`
	Author string             `json:"author"`
	Image  string             `json:"image,omitempty"`
	Price  Money              `json:"price"`
}

func (b *Book) Summary() *BookSummary {
	return &BookSummary{
		ID:     b.ID,
		Title:  b.Title,
		Author: b.Author,
		Image:  b.Image,
		Price:  b.Price,
	}
}
