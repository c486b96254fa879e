package key

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Request is one parsed command as handed over by the dispatch layer.
type Request struct {
	// Command is the command type, e.g. "find".
	Command string
	// Body is the full command document. Its first element names the command
	// and its target collection.
	Body bson.D
}

// NewRequest builds a Request from a command document, taking the command
// type from the document's first element.
func NewRequest(body bson.D) (Request, error) {
	if len(body) == 0 {
		return Request{}, fmt.Errorf("%w: empty command document", ErrInvalidRequest)
	}
	return Request{Command: body[0].Key, Body: body}, nil
}

// CollectionType describes what the command's namespace resolved to.
type CollectionType string

// Collection types reported in the collectionType key field.
const (
	CollectionTypeCollection  CollectionType = "collection"
	CollectionTypeView        CollectionType = "view"
	CollectionTypeTimeseries  CollectionType = "timeseries"
	CollectionTypeNonExistent CollectionType = "nonExistent"
	CollectionTypeVirtual     CollectionType = "virtual"
)

// ExecContext carries the execution-context fields of a key that do not come
// from command options.
type ExecContext struct {
	// CollectionType defaults to CollectionTypeCollection.
	CollectionType CollectionType
	// Client is the client metadata document sent at connection handshake.
	// A nil Client omits the client field.
	Client bson.D
}

func (e ExecContext) collectionType() CollectionType {
	if e.CollectionType == "" {
		return CollectionTypeCollection
	}
	return e.CollectionType
}
