package services

import (
	"encoding/json"
	"fmt"
	"strconv"

	apperrors "github.com/yashrajoria/tomeshelf/common/errors"
	"github.com/yashrajoria/tomeshelf/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gateway metadata limits: values up to 500 characters, at most 50 keys.
const (
	metadataValueLimit = 500
	metadataKeyLimit   = 50

	metaUserID      = "userId"
	metaAddress     = "shippingAddress"
	metaItems       = "items"
	metaItemsChunks = "items_chunks"
)

// encodeSessionMetadata packs everything needed to build the order later, so that
// confirmation does not depend on the local cart. Item lists longer than one metadata
// value are split across items_0..items_n.
func encodeSessionMetadata(owner primitive.ObjectID, items []models.SessionLineItem, addr models.ShippingAddress) (map[string]string, error) {
	addrJSON, err := json.Marshal(addr)
	if err != nil {
		return nil, apperrors.Internal("Failed to encode shipping address", err)
	}
	if len([]rune(string(addrJSON))) > metadataValueLimit {
		return nil, apperrors.InvalidArgument("Shipping address is too long")
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, apperrors.Internal("Failed to encode items", err)
	}

	md := map[string]string{
		metaUserID:  owner.Hex(),
		metaAddress: string(addrJSON),
	}

	chunks := splitRunes(string(itemsJSON), metadataValueLimit)
	if len(chunks) == 1 {
		md[metaItems] = chunks[0]
		return md, nil
	}
	if len(chunks)+len(md)+1 > metadataKeyLimit {
		return nil, apperrors.InvalidArgument("Too many items for online payment")
	}
	for i, c := range chunks {
		md[fmt.Sprintf("%s_%d", metaItems, i)] = c
	}
	md[metaItemsChunks] = strconv.Itoa(len(chunks))
	return md, nil
}

func splitRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// decodeSessionMetadata reverses encodeSessionMetadata. Any missing or malformed field is
// a DataIntegrity error: the session was not created by this service or was tampered with.
func decodeSessionMetadata(md map[string]string) (primitive.ObjectID, []models.SessionLineItem, models.ShippingAddress, error) {
	var addr models.ShippingAddress

	rawOwner := md[metaUserID]
	if rawOwner == "" {
		return primitive.NilObjectID, nil, addr, apperrors.DataIntegrity("User information missing. Please contact support.", nil)
	}
	owner, err := primitive.ObjectIDFromHex(rawOwner)
	if err != nil {
		return primitive.NilObjectID, nil, addr, apperrors.DataIntegrity("Payment session has an invalid user id", err)
	}

	if err := json.Unmarshal([]byte(md[metaAddress]), &addr); err != nil {
		return primitive.NilObjectID, nil, addr, apperrors.DataIntegrity("Payment session has no shipping address", err)
	}

	rawItems := md[metaItems]
	if n := md[metaItemsChunks]; n != "" {
		parts, err := strconv.Atoi(n)
		if err != nil || parts < 1 {
			return primitive.NilObjectID, nil, addr, apperrors.DataIntegrity("Payment session has a malformed item list", err)
		}
		rawItems = ""
		for i := 0; i < parts; i++ {
			part, ok := md[fmt.Sprintf("%s_%d", metaItems, i)]
			if !ok {
				return primitive.NilObjectID, nil, addr, apperrors.DataIntegrity("Payment session has a truncated item list", nil)
			}
			rawItems += part
		}
	}

	var items []models.SessionLineItem
	if err := json.Unmarshal([]byte(rawItems), &items); err != nil || len(items) == 0 {
		return primitive.NilObjectID, nil, addr, apperrors.DataIntegrity("Payment session has no items", err)
	}
	for _, item := range items {
		if item.Quantity < 1 || item.Quantity > models.MaxItemQuantity || item.UnitPrice.IsNegative() {
			return primitive.NilObjectID, nil, addr, apperrors.DataIntegrity("Payment session has an invalid item", nil)
		}
	}
	return owner, items, addr, nil
}
