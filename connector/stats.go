package connector

// ConnectionStats is a point-in-time snapshot of the pool.
type ConnectionStats struct {
	OpenConnections int
	InUse           int
	Idle            int
}
