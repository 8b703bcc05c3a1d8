package queue

import "errors"

// Ошибки движка очереди. HTTP-слой переводит их в коды ответа,
// движок сам повторяет только ErrConcurrentConflict.
var (
	ErrQueueNotFound      = errors.New("очередь не найдена")
	ErrQueueNotActive     = errors.New("очередь не принимает пациентов")
	ErrCapacityExceeded   = errors.New("очередь заполнена")
	ErrDuplicateAdmission = errors.New("пациент уже состоит в этой очереди")
	ErrPriorityOutOfRange = errors.New("приоритет вне диапазона очереди")
	ErrEntryNotFound      = errors.New("запись в очереди не найдена")
	ErrInvalidTransition  = errors.New("недопустимый переход состояния записи")
	ErrQueueEmpty         = errors.New("в очереди нет ожидающих")
	ErrConcurrentConflict = errors.New("конфликт одновременного обновления очереди")
)

// maxCallRetries — сколько раз CallNext повторяет попытку после
// проигранной гонки за первую позицию.
const maxCallRetries = 3
