package kis

// OAuth
const (
	tokenPath   = "/oauth2/tokenP"
	hashkeyPath = "/uapi/hashkey"
)

// Domestic equity paths.
const (
	orderPath       = "/uapi/domestic-stock/v1/trading/order-cash"
	orderCancelPath = "/uapi/domestic-stock/v1/trading/order-rvsecncl"
	balancePath     = "/uapi/domestic-stock/v1/trading/inquire-balance"
	pricePath       = "/uapi/domestic-stock/v1/quotations/inquire-price"
	dailyPricePath  = "/uapi/domestic-stock/v1/quotations/inquire-daily-price"
	minuteChartPath = "/uapi/domestic-stock/v1/quotations/inquire-time-itemchartprice"
)

// Transaction IDs, production set.
const (
	trBuy         = "TTTC0802U"
	trSell        = "TTTC0801U"
	trCancel      = "TTTC0803U"
	trBalance     = "TTTC8434R"
	trPrice       = "FHKST01010100"
	trDailyPrice  = "FHKST01010400"
	trMinuteChart = "FHKST03010200"
)

// Transaction IDs, mock (VTS) set. Quote TRs are shared.
const (
	trBuyMock     = "VTTC0802U"
	trSellMock    = "VTTC0801U"
	trCancelMock  = "VTTC0803U"
	trBalanceMock = "VTTC8434R"
)
