package market

type QuoteStatus string

const (
	QuotePending         QuoteStatus = "pending"
	QuoteSupplierCounter QuoteStatus = "supplier_counter"
	QuoteSupplierAccept  QuoteStatus = "supplier_accept"
	QuoteBuyerAccept     QuoteStatus = "buyer_accept"
	QuoteBuyerCancel     QuoteStatus = "buyer_cancel"
	QuoteRejected        QuoteStatus = "rejected"
	QuoteConverted       QuoteStatus = "converted"
)

type QuoteAction string

const (
	QuoteCounter    QuoteAction = "counter"
	QuoteAccept     QuoteAction = "accept" // supplier accepts at snapshot price
	QuoteReject     QuoteAction = "reject"
	QuoteBuyerOK    QuoteAction = "buyer_accept"
	QuoteBuyerAbort QuoteAction = "buyer_cancel"
	QuoteConvert    QuoteAction = "convert"
)

var quoteTransitions = map[QuoteStatus]map[QuoteAction]QuoteStatus{
	QuotePending: {
		QuoteCounter: QuoteSupplierCounter,
		QuoteAccept:  QuoteSupplierAccept,
		QuoteReject:  QuoteRejected,
	},
	QuoteSupplierCounter: {
		QuoteBuyerOK:    QuoteBuyerAccept,
		QuoteBuyerAbort: QuoteBuyerCancel,
		QuoteConvert:    QuoteConverted,
	},
	QuoteSupplierAccept: {
		QuoteBuyerOK:    QuoteBuyerAccept,
		QuoteBuyerAbort: QuoteBuyerCancel,
		QuoteConvert:    QuoteConverted,
	},
	QuoteBuyerAccept: {
		QuoteConvert: QuoteConverted,
	},
}

var quoteActionRole = map[QuoteAction]Role{
	QuoteCounter:    RoleSupplier,
	QuoteAccept:     RoleSupplier,
	QuoteReject:     RoleSupplier,
	QuoteBuyerOK:    RoleBuyer,
	QuoteBuyerAbort: RoleBuyer,
	QuoteConvert:    RoleBuyer,
}

func NextQuote(from QuoteStatus, a QuoteAction) (QuoteStatus, bool) {
	to, ok := quoteTransitions[from][a]
	return to, ok
}

func RoleForQuoteAction(a QuoteAction) Role {
	return quoteActionRole[a]
}

// Terminal statuses accept no further actions of any kind.
func (s QuoteStatus) Terminal() bool {
	return s == QuoteRejected || s == QuoteBuyerCancel || s == QuoteConverted
}
