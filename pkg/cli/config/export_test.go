package config

// NewRepositoryForTest creates a Repository config with preset values for testing
func NewRepositoryForTest(backend, projectID, chromemPath, postgresDSN string) *Repository {
	return &Repository{
		backend:     backend,
		projectID:   projectID,
		chromemPath: chromemPath,
		postgresDSN: postgresDSN,
	}
}

// NewLoggerForTest creates a Logger config with preset values for testing
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}

// NewPolicyForTest creates a Policy config with a preset path for testing
func NewPolicyForTest(path string) *Policy {
	return &Policy{path: path}
}
