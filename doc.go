// Package todoprovider owns the process-wide connection to the todo-list
// database stored as TODO_LIST_PROVIDER.db in the platform data directory.
//
//	db, err := todoprovider.OpenConnection(ctx)
//	if err != nil {
//	    return err
//	}
//	defer todoprovider.CloseConnection()
//
// The first OpenConnection creates or migrates the file; later calls return
// the same handle without locking.
package todoprovider
