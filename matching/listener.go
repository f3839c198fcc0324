package matching

// Listener is the capability set an external observer supplies to receive
// synchronous book events (§6.3, §9 design notes: this replaces an
// inheritance hierarchy from the source with a plain capability interface).
// All callbacks are invoked inside Engine.Submit/Cancel/Amend before the
// call returns; implementations must not re-enter the engine from within a
// callback.
type Listener interface {
	OnTrade(fill Fill)
	OnOrderAdded(order Order)
	OnOrderCanceled(order Order)
	OnOrderAmended(order Order)
	OnOrderRejected(order Order, reason RejectReason)
	OnBBOChanged(bbo BBO)
}

// NoopListener is a Listener whose methods do nothing; embed it to satisfy
// the interface while overriding only the callbacks you care about.
type NoopListener struct{}

func (NoopListener) OnTrade(Fill)                         {}
func (NoopListener) OnOrderAdded(Order)                   {}
func (NoopListener) OnOrderCanceled(Order)                {}
func (NoopListener) OnOrderAmended(Order)                 {}
func (NoopListener) OnOrderRejected(Order, RejectReason)  {}
func (NoopListener) OnBBOChanged(BBO)                     {}
