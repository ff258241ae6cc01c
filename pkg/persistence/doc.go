// Package persistence stores the memory collection on disk.
//
// Two snapshot formats satisfy memory.Snapshotter:
//
//	JSONFile  a JSON array of records, written atomically by default
//	SQLite    one row per record, embeddings stored as sqlite-vec float32 blobs
//
// Every Save is a full overwrite of the collection. Watcher reports changes
// made to a snapshot by other processes.
package persistence
