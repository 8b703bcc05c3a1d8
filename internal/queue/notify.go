package queue

import (
	"strconv"

	"clinic_queue/internal/ws"
)

// notify рассылает событие очереди на табло и рабочие места.
// Доставка best-effort и не влияет на результат операции.
func notify(queueID uint, event string, data map[string]interface{}) {
	ws.HubInstance.BroadcastWSMessage(ws.WSMessage{
		EventType: event,
		QueueID:   strconv.FormatUint(uint64(queueID), 10),
		Data:      data,
	})
}
