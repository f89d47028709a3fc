package event

import "strconv"

// QuoteCondition is the condition code attached to a quote
type QuoteCondition uint32

const (
	ConditionRegular          QuoteCondition = 0
	ConditionOpening          QuoteCondition = 13
	ConditionClosing          QuoteCondition = 14
	ConditionClosed           QuoteCondition = 15
	ConditionLULDTradingPause QuoteCondition = 43
	ConditionSlowDueLRPBidAsk QuoteCondition = 71
)

var quoteConditionNames = [...]string{
	"Regular", "RegularTwoSidedOpen", "RegularOneSidedOpen", "SlowAsk", "SlowBid",
	"SlowBidAsk", "SlowDueLRPBid", "SlowDueLRPAsk", "SlowDueNYSELRP", "SlowDueSetSlowListBidAsk",
	"ManualAskAutomaticBid", "ManualBidAutomaticAsk", "ManualBidAndAsk", "Opening", "Closing",
	"Closed", "Resume", "FastTrading", "TradingRangeIndication", "MarketMakerQuotesClosed",
	"NonFirm", "NewsDissemination", "OrderInflux", "OrderImbalance", "DueToRelatedSecurityNewsDissemination",
	"DueToRelatedSecurityNewsPending", "AdditionalInformation", "NewsPending", "AdditionalInformationDueToRelatedSecurity", "DueToRelatedSecurity",
	"InViewOfCommon", "EquipmentChangeover", "NoOpenNoResume", "SubPennyTrading", "AutomatedBidNoOfferNoBid",
	"LuldPriceBand", "MarketWideCircuitBreakerLevel1", "MarketWideCircuitBreakerLevel2", "MarketWideCircuitBreakerLevel3", "RepublishedLuldPriceBand",
	"OnDemandAuction", "CashOnlySettlement", "NextDaySettlement", "LULDTradingPause",
}

func (c QuoteCondition) String() string {
	if int(c) < len(quoteConditionNames) {
		return quoteConditionNames[c]
	}
	if c == ConditionSlowDueLRPBidAsk {
		return "SlowDueLRPBidAsk"
	}
	return "QuoteCondition(" + strconv.FormatUint(uint64(c), 10) + ")"
}
