package akashica

// ChangesetRef names anything a session can be bound to: a commit
// (read-only) or a workspace (read-write).
type ChangesetRef struct {
	commit    *CommitID
	workspace *WorkspaceID
}

// CommitRef returns a changeset reference to a commit.
func CommitRef(id CommitID) ChangesetRef {
	return ChangesetRef{commit: &id}
}

// WorkspaceRef returns a changeset reference to a workspace.
func WorkspaceRef(ws WorkspaceID) ChangesetRef {
	return ChangesetRef{workspace: &ws}
}

// IsCommit reports whether the reference names a commit.
func (r ChangesetRef) IsCommit() bool {
	return r.commit != nil
}

// Commit returns the referenced commit id, if any.
func (r ChangesetRef) Commit() (CommitID, bool) {
	if r.commit == nil {
		return "", false
	}
	return *r.commit, true
}

// Workspace returns the referenced workspace id, if any.
func (r ChangesetRef) Workspace() (WorkspaceID, bool) {
	if r.workspace == nil {
		return WorkspaceID{}, false
	}
	return *r.workspace, true
}

func (r ChangesetRef) String() string {
	switch {
	case r.commit != nil:
		return r.commit.String()
	case r.workspace != nil:
		return r.workspace.String()
	}
	return ""
}
