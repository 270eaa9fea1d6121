package gql

import (
	"context"
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/avolkov/docgraph/internal/apperrors"
	"github.com/avolkov/docgraph/internal/dataloader"
	"github.com/avolkov/docgraph/internal/dbservice"
	"github.com/avolkov/docgraph/internal/writequeue"
)

// resolverContext extracts the per-request RequestContext off a resolve
// param's Context, since graphql-go routes context.Context through
// ResolveParams.Context rather than a direct argument.
func resolverContext(p graphql.ResolveParams) *RequestContext {
	return FromContext(p.Context)
}

func resolveNote(p graphql.ResolveParams) (interface{}, error) {
	rc := resolverContext(p)
	id, _ := p.Args["id"].(string)
	if id == "" {
		return nil, apperrors.InvalidInput("id is required")
	}
	if err := rc.Authz.RequireAuth(p.Context, rc.Subject(), notesCollection, "read", false); err != nil {
		return nil, err
	}
	return rc.Notes.Load(p.Context, id)
}

func resolveNotes(p graphql.ResolveParams) (interface{}, error) {
	rc := resolverContext(p)
	if err := rc.Authz.RequireAuth(p.Context, rc.Subject(), notesCollection, "read", false); err != nil {
		return nil, err
	}

	bindings := map[string]interface{}{}
	statement := "list_by_collection"
	bindings["collection"] = notesCollection

	if author, ok := p.Args["author"].(string); ok && author != "" {
		statement = "list_by_author"
		bindings["author"] = author
	}
	if tag, ok := p.Args["tag"].(string); ok && tag != "" {
		statement = "list_by_tag"
		bindings["tag"] = tag
	}

	rows, err := rc.DB.Query(p.Context, statement, bindings)
	if err != nil {
		return nil, dbErrToApp(err)
	}

	notes := make([]*Note, 0, len(rows))
	for _, raw := range rows {
		n, err := noteFromRawMessage(raw)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func resolveCreateNote(p graphql.ResolveParams) (interface{}, error) {
	rc := resolverContext(p)
	if err := rc.Authz.RequireAuth(p.Context, rc.Subject(), notesCollection, "write", true); err != nil {
		return nil, err
	}

	title, _ := p.Args["title"].(string)
	content, _ := p.Args["content"].(string)
	author, _ := p.Args["author"].(string)
	tags := stringSliceArg(p.Args["tags"])

	if err := ValidateNoteInput(title, content, author, tags); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	note := &Note{Title: title, Content: content, Author: author, Tags: tags}
	payload, err := note.toRawMessage()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if rc.Queue != nil {
		if _, err := rc.Queue.Enqueue(notesCollection, writequeue.OpCreate, "", payload); err != nil {
			return nil, apperrors.Wrap(apperrors.KindServiceUnavailable, "write queue rejected the request", err)
		}
		publishNoteEvent(rc, noteEventCreated, note)
		return note, nil
	}

	id, err := rc.DB.Create(p.Context, notesCollection, payload)
	if err != nil {
		return nil, dbErrToApp(err)
	}
	note.ID = id
	publishNoteEvent(rc, noteEventCreated, note)
	return note, nil
}

func resolveUpdateNote(p graphql.ResolveParams) (interface{}, error) {
	rc := resolverContext(p)
	if err := rc.Authz.RequireAuth(p.Context, rc.Subject(), notesCollection, "write", true); err != nil {
		return nil, err
	}

	id, _ := p.Args["id"].(string)
	if id == "" {
		return nil, apperrors.InvalidInput("id is required")
	}

	existing, found, err := rc.DB.Read(p.Context, notesCollection, id)
	if err != nil {
		return nil, dbErrToApp(err)
	}
	if !found {
		return nil, apperrors.NotFound(fmt.Sprintf("note %q not found", id))
	}
	note, err := noteFromRawMessage(existing)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if title, ok := p.Args["title"].(string); ok && title != "" {
		note.Title = title
	}
	if content, ok := p.Args["content"].(string); ok && content != "" {
		note.Content = content
	}
	if author, ok := p.Args["author"].(string); ok && author != "" {
		note.Author = author
	}
	if tags, ok := p.Args["tags"]; ok {
		note.Tags = stringSliceArg(tags)
	}

	if err := ValidateNoteInput(note.Title, note.Content, note.Author, note.Tags); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	patch, err := note.toRawMessage()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if rc.Queue != nil {
		if _, err := rc.Queue.Enqueue(notesCollection, writequeue.OpUpdate, id, patch); err != nil {
			return nil, apperrors.Wrap(apperrors.KindServiceUnavailable, "write queue rejected the request", err)
		}
	} else if err := rc.DB.Update(p.Context, notesCollection, id, patch); err != nil {
		return nil, dbErrToApp(err)
	}

	rc.Notes.Flush()
	publishNoteEvent(rc, noteEventUpdated, note)
	return note, nil
}

func resolveDeleteNote(p graphql.ResolveParams) (interface{}, error) {
	rc := resolverContext(p)
	if err := rc.Authz.RequireAuth(p.Context, rc.Subject(), notesCollection, "write", true); err != nil {
		return nil, err
	}

	id, _ := p.Args["id"].(string)
	if id == "" {
		return nil, apperrors.InvalidInput("id is required")
	}

	if rc.Queue != nil {
		if _, err := rc.Queue.Enqueue(notesCollection, writequeue.OpDelete, id, nil); err != nil {
			return nil, apperrors.Wrap(apperrors.KindServiceUnavailable, "write queue rejected the request", err)
		}
	} else if err := rc.DB.Delete(p.Context, notesCollection, id); err != nil {
		return nil, dbErrToApp(err)
	}

	rc.Notes.Flush()
	publishNoteEvent(rc, noteEventDeleted, &Note{ID: id})
	return true, nil
}

func stringSliceArg(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func dbErrToApp(err error) error {
	var dbErr *dbservice.DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.ToAppError()
	}
	return apperrors.Internal(err)
}

// batchReadNotes is the dataloader.BatchFunc backing RequestContext.Notes.
func batchReadNotes(db dbservice.Service) dataloader.BatchFunc[string, *Note] {
	return func(ctx context.Context, keys []string) []dataloader.Result[*Note] {
		out := make([]dataloader.Result[*Note], len(keys))
		for i, id := range keys {
			raw, found, err := db.Read(ctx, notesCollection, id)
			if err != nil {
				out[i] = dataloader.Result[*Note]{Err: dbErrToApp(err)}
				continue
			}
			if !found {
				out[i] = dataloader.Result[*Note]{Err: apperrors.NotFound(fmt.Sprintf("note %q not found", id))}
				continue
			}
			n, err := noteFromRawMessage(raw)
			if err != nil {
				out[i] = dataloader.Result[*Note]{Err: apperrors.Internal(err)}
				continue
			}
			out[i] = dataloader.Result[*Note]{Value: n}
		}
		return out
	}
}
