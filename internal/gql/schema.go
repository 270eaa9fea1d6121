package gql

import (
	"github.com/graphql-go/graphql"
)

var noteType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Note",
	Fields: graphql.Fields{
		"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"title":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"content":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"author":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"tags":      &graphql.Field{Type: graphql.NewList(graphql.String)},
		"createdAt": &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		"updatedAt": &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
	},
})

var tagsArg = &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)}

var queryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Query",
	Fields: graphql.Fields{
		"note": &graphql.Field{
			Type: noteType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: resolveNote,
		},
		"notes": &graphql.Field{
			Type: graphql.NewList(noteType),
			Args: graphql.FieldConfigArgument{
				"author": &graphql.ArgumentConfig{Type: graphql.String},
				"tag":    &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: resolveNotes,
		},
	},
})

var mutationType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Mutation",
	Fields: graphql.Fields{
		"createNote": &graphql.Field{
			Type: noteType,
			Args: graphql.FieldConfigArgument{
				"title":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"content": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"author":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"tags":    tagsArg,
			},
			Resolve: resolveCreateNote,
		},
		"updateNote": &graphql.Field{
			Type: noteType,
			Args: graphql.FieldConfigArgument{
				"id":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				"title":   &graphql.ArgumentConfig{Type: graphql.String},
				"content": &graphql.ArgumentConfig{Type: graphql.String},
				"author":  &graphql.ArgumentConfig{Type: graphql.String},
				"tags":    tagsArg,
			},
			Resolve: resolveUpdateNote,
		},
		"deleteNote": &graphql.Field{
			Type: graphql.NewNonNull(graphql.Boolean),
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: resolveDeleteNote,
		},
	},
})

var subscriptionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Subscription",
	Fields: graphql.Fields{
		"noteChanged": &graphql.Field{
			Type: noteType,
			Args: graphql.FieldConfigArgument{
				"author": &graphql.ArgumentConfig{Type: graphql.String},
			},
		},
	},
})

// NewSchema builds the gateway's GraphQL schema once at startup. It is
// safe to share across requests; graphql-go schemas are immutable once
// constructed.
func NewSchema() (graphql.Schema, error) {
	return graphql.NewSchema(graphql.SchemaConfig{
		Query:        queryType,
		Mutation:     mutationType,
		Subscription: subscriptionType,
	})
}
