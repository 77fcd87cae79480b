package interfaces

// Repository defines the interface for memory persistence
type Repository interface {
	Record() RecordRepository
	Episode() EpisodeRepository

	// Close releases the underlying storage client
	Close() error
}
