package metrics

// HandleMetrics observes the handle table: export/import
// volume and table sizes. A nil HandleMetrics disables collection with
// zero overhead.
type HandleMetrics interface {
	// RecordExport records a new local object exported to the peer.
	RecordExport()

	// RecordRelease records a local export reaching a zero refcount and
	// being released.
	RecordRelease()

	// SetExportCount records the current size of the local exports
	// table.
	SetExportCount(n int)

	// SetImportCount records the current size of the remote imports
	// table.
	SetImportCount(n int)
}
