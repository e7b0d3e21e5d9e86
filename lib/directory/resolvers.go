// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"fmt"

	"github.com/bureau-foundation/requests/lib/codec"
	"github.com/bureau-foundation/requests/lib/permission"
	"github.com/bureau-foundation/requests/lib/ref"
	"github.com/bureau-foundation/requests/lib/resolver"
)

// Resolver type ids, in default registration order.
const (
	TypeUsers       = "users"
	TypeGroups      = "groups"
	TypeRecords     = "records"
	TypeCommunities = "communities"
)

// DefaultResolverOrder is the registration order used when the
// configuration does not name one.
var DefaultResolverOrder = []string{TypeUsers, TypeGroups, TypeRecords, TypeCommunities}

// Resolvers builds the resolvers named by typeIDs, in that order. The
// policy decides field visibility in projections.
func (d *Directory) Resolvers(typeIDs []string, policy permission.Policy) ([]resolver.Resolver, error) {
	resolvers := make([]resolver.Resolver, 0, len(typeIDs))
	for _, typeID := range typeIDs {
		var definition resolver.Definition
		switch typeID {
		case TypeUsers:
			definition = d.userDefinition(policy)
		case TypeGroups:
			definition = d.groupDefinition()
		case TypeRecords:
			definition = d.recordDefinition()
		case TypeCommunities:
			definition = d.communityDefinition()
		default:
			return nil, fmt.Errorf("directory: unknown resolver type %q", typeID)
		}
		built, err := resolver.New(definition)
		if err != nil {
			return nil, err
		}
		resolvers = append(resolvers, built)
	}
	return resolvers, nil
}

// SystemDocument is the projection of the system identity.
func SystemDocument() resolver.Document {
	return resolver.Document{
		"id":       ref.SystemID,
		"username": "system",
		"profile":  map[string]any{"full_name": "System"},
		"active":   true,
	}
}

func (d *Directory) userDefinition(policy permission.Policy) resolver.Definition {
	return resolver.Definition{
		TypeID:  TypeUsers,
		Kind:    ref.KindUser,
		Service: d.Service(ref.KindUser),
		Match:   func(entity any) bool { _, ok := entity.(*User); return ok },
		ID:      func(entity any) string { return entity.(*User).ID },
		Decode:  decoder[User],
		Ghost: func(id string) resolver.Document {
			return resolver.Document{
				"id":       id,
				"username": "",
				"profile":  map[string]any{"full_name": "Deleted user"},
				"is_ghost": true,
			}
		},
		System: func(id string) (resolver.Document, bool) {
			if id == ref.SystemID {
				return SystemDocument(), true
			}
			return nil, false
		},
		Pick: func(identity permission.Identity, record resolver.Document) resolver.Document {
			projected := pick(record, "id", "username", "profile", "active", "is_ghost")
			if email, ok := record["email"]; ok {
				user, err := decoder[User](record)
				if err == nil && policy.Can(identity, "user/read-email", user) {
					projected["email"] = email
				}
			}
			return projected
		},
	}
}

func (d *Directory) groupDefinition() resolver.Definition {
	return resolver.Definition{
		TypeID:  TypeGroups,
		Kind:    ref.KindGroup,
		Service: d.Service(ref.KindGroup),
		Match:   func(entity any) bool { _, ok := entity.(*Group); return ok },
		ID:      func(entity any) string { return entity.(*Group).ID },
		Decode:  decoder[Group],
		Ghost: func(id string) resolver.Document {
			return resolver.Document{"id": id, "name": "Deleted group", "is_ghost": true}
		},
		Pick: func(_ permission.Identity, record resolver.Document) resolver.Document {
			return pick(record, "id", "name", "description", "is_ghost")
		},
	}
}

func (d *Directory) recordDefinition() resolver.Definition {
	return resolver.Definition{
		TypeID:  TypeRecords,
		Kind:    ref.KindRecord,
		Service: d.Service(ref.KindRecord),
		Match:   func(entity any) bool { _, ok := entity.(*Record); return ok },
		ID:      func(entity any) string { return entity.(*Record).ID },
		Decode:  decoder[Record],
		Ghost: func(id string) resolver.Document {
			return resolver.Document{"id": id, "metadata": map[string]any{"title": "Deleted record"}, "is_ghost": true}
		},
		Pick: func(_ permission.Identity, record resolver.Document) resolver.Document {
			return pick(record, "id", "metadata", "is_ghost")
		},
	}
}

func (d *Directory) communityDefinition() resolver.Definition {
	return resolver.Definition{
		TypeID:  TypeCommunities,
		Kind:    ref.KindCommunity,
		Service: d.Service(ref.KindCommunity),
		Match:   func(entity any) bool { _, ok := entity.(*Community); return ok },
		ID:      func(entity any) string { return entity.(*Community).ID },
		Decode:  decoder[Community],
		Ghost: func(id string) resolver.Document {
			return resolver.Document{"id": id, "slug": "", "metadata": map[string]any{"title": "Deleted community"}, "is_ghost": true}
		},
		Pick: func(_ permission.Identity, record resolver.Document) resolver.Document {
			return pick(record, "id", "slug", "metadata", "is_ghost")
		},
	}
}

// decoder converts a document into a typed entity by re-encoding it.
func decoder[T any](document resolver.Document) (any, error) {
	data, err := codec.Marshal(document)
	if err != nil {
		return nil, err
	}
	entity := new(T)
	if err := codec.Unmarshal(data, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// pick copies the listed keys that are present in record.
func pick(record resolver.Document, keys ...string) resolver.Document {
	projected := make(resolver.Document, len(keys))
	for _, key := range keys {
		if value, ok := record[key]; ok {
			projected[key] = value
		}
	}
	return projected
}
