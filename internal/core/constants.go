package core

// DefaultWorkers bounds concurrent content fetches within a sync pass.
const DefaultWorkers = 4
