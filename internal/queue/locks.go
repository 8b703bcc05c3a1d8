package queue

import "sync"

// Каждая очередь — отдельная единица взаимного исключения: операции над
// разными очередями идут параллельно, операции read-modify-write над одной
// очередью сериализуются её мьютексом.
var queueLocks sync.Map // uint -> *sync.Mutex

func lockQueue(queueID uint) func() {
	v, _ := queueLocks.LoadOrStore(queueID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
