package monitor

import (
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// DecideWindow is the downtime transition rule. It runs inside the
// check-insert transaction, so it must stay pure:
//
//	up -> down  opens a window
//	down -> down  keeps the existing window
//	down -> up  closes the window
//	up -> up  does nothing
func DecideWindow(open *models.DowntimeWindow, available bool) interfaces.WindowAction {
	if available {
		if open != nil {
			return interfaces.WindowClose
		}
		return interfaces.WindowNone
	}
	if open == nil {
		return interfaces.WindowOpen
	}
	return interfaces.WindowNone
}
