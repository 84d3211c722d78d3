package broadcast

import "errors"

var (
	ErrObserverClosed = errors.New("observer closed")
	ErrObserverSlow   = errors.New("observer fell behind")
	ErrSendFailed     = errors.New("failed to deliver message")
)
