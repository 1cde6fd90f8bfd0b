package client

import (
	"context"
	"encoding/json"

	"github.com/hazyhaar/pagewright/autosave"
)

// ProjectSaver saves editor snapshots of one project through a Client.
type ProjectSaver struct {
	Client    *Client
	ProjectID string
	// Meta, when set, supplies the metadata stored with each snapshot.
	Meta func() json.RawMessage
}

// Save implements autosave.Saver.
func (s *ProjectSaver) Save(ctx context.Context, snap autosave.Snapshot) error {
	var meta json.RawMessage
	if s.Meta != nil {
		meta = s.Meta()
	}
	_, err := s.Client.SaveDocument(ctx, s.ProjectID, snap.HTML, meta, snap.Revision)
	return err
}

var _ autosave.Saver = (*ProjectSaver)(nil)
