package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microtrade/internal/broker"
	"microtrade/internal/trading"
)

// Broker routes orders and quote queries through the KIS OpenAPI. The same
// implementation serves real and mock trading; the TR set switches on the
// host.
type Broker struct {
	Client *Client
	Logger *zap.Logger

	AccountNo   string
	ProductCode string
}

func NewBroker(client *Client, accountNo string, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		Client:      client,
		Logger:      logger,
		AccountNo:   accountNo,
		ProductCode: "01",
	}
}

func (b *Broker) Name() string {
	if b.Client != nil && b.Client.IsMock() {
		return "kis-mock"
	}
	return "kis"
}

func (b *Broker) Connect(ctx context.Context) error {
	if b == nil || b.Client == nil {
		return broker.ErrNotConnected
	}
	if err := b.Client.ForceRefresh(ctx); err != nil {
		return err
	}
	b.Logger.Info("kis broker connected", zap.Bool("mock", b.Client.IsMock()))
	return nil
}

func (b *Broker) Disconnect(ctx context.Context) error {
	return nil
}

func (b *Broker) accountBody() map[string]string {
	return map[string]string{
		"CANO":         b.AccountNo,
		"ACNT_PRDT_CD": b.ProductCode,
	}
}

func (b *Broker) orderTR(side trading.Side) string {
	mock := b.Client.IsMock()
	if side == trading.SideBuy {
		if mock {
			return trBuyMock
		}
		return trBuy
	}
	if mock {
		return trSellMock
	}
	return trSell
}

// envelope is the common KIS response frame. rt_cd "0" means success.
type envelope struct {
	RtCd string          `json:"rt_cd"`
	Msg1 string          `json:"msg1"`
	Out  json.RawMessage `json:"output"`
	Out1 json.RawMessage `json:"output1"`
	Out2 json.RawMessage `json:"output2"`
}

func (b *Broker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	if b == nil || b.Client == nil {
		return nil, broker.ErrNotConnected
	}
	// ORD_DVSN 01 is market, 00 limit. Limit price rides ORD_UNPR as a
	// whole-won string; market orders send "0".
	ordDvsn := "01"
	unpr := "0"
	if req.OrderType == trading.OrderLimit {
		ordDvsn = "00"
		if req.LimitPrice != nil {
			unpr = req.LimitPrice.Truncate(0).String()
		}
	}
	body := b.accountBody()
	body["PDNO"] = req.Symbol
	body["ORD_DVSN"] = ordDvsn
	body["ORD_QTY"] = strconv.FormatInt(req.Quantity, 10)
	body["ORD_UNPR"] = unpr

	raw, err := b.Client.Post(ctx, orderPath, b.orderTR(req.Side), body)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("order response malformed: %w", err)
	}
	if env.RtCd != "0" {
		return &broker.OrderResult{Status: trading.StatusRejected, Reason: env.Msg1}, nil
	}
	var out struct {
		ODNO string `json:"ODNO"`
	}
	_ = json.Unmarshal(env.Out, &out)
	return &broker.OrderResult{
		BrokerOrderID: out.ODNO,
		Status:        trading.StatusSubmitted,
	}, nil
}

func (b *Broker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	if b == nil || b.Client == nil {
		return broker.ErrNotConnected
	}
	tr := trCancel
	if b.Client.IsMock() {
		tr = trCancelMock
	}
	body := b.accountBody()
	body["KRX_FWDG_ORD_ORGNO"] = ""
	body["ORGN_ODNO"] = brokerOrderID
	body["ORD_DVSN"] = "00"
	body["RVSE_CNCL_DVSN_CD"] = "02"
	body["ORD_QTY"] = "0"
	body["ORD_UNPR"] = "0"
	body["QTY_ALL_ORD_YN"] = "Y"

	raw, err := b.Client.Post(ctx, orderCancelPath, tr, body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("cancel response malformed: %w", err)
	}
	if env.RtCd != "0" {
		return fmt.Errorf("cancel rejected: %s", env.Msg1)
	}
	return nil
}

func (b *Broker) GetBalance(ctx context.Context) broker.Balance {
	if b == nil || b.Client == nil {
		return broker.Balance{Currency: "KRW"}
	}
	tr := trBalance
	if b.Client.IsMock() {
		tr = trBalanceMock
	}
	params := url.Values{}
	params.Set("CANO", b.AccountNo)
	params.Set("ACNT_PRDT_CD", b.ProductCode)
	params.Set("AFHR_FLPR_YN", "N")
	params.Set("OFL_YN", "")
	params.Set("INQR_DVSN", "02")
	params.Set("UNPR_DVSN", "01")
	params.Set("FUND_STTL_ICLD_YN", "N")
	params.Set("FNCG_AMT_AUTO_RDPT_YN", "N")
	params.Set("PRCS_DVSN", "01")
	params.Set("CTX_AREA_FK100", "")
	params.Set("CTX_AREA_NK100", "")

	raw, err := b.Client.Get(ctx, balancePath, tr, params)
	if err != nil {
		b.Logger.Error("balance query failed", zap.Error(err))
		return broker.Balance{Currency: "KRW"}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		b.Logger.Error("balance response malformed", zap.Error(err))
		return broker.Balance{Currency: "KRW"}
	}

	var holdings []struct {
		PDNO         string `json:"pdno"`
		HldgQty      string `json:"hldg_qty"`
		PchsAvgPric  string `json:"pchs_avg_pric"`
		Prpr         string `json:"prpr"`
		PrdtName     string `json:"prdt_name"`
		EvluAmt      string `json:"evlu_amt"`
		EvluPflsAmt  string `json:"evlu_pfls_amt"`
		EvluPflsRt   string `json:"evlu_pfls_rt"`
		TradDvsnName string `json:"trad_dvsn_name"`
	}
	_ = json.Unmarshal(env.Out1, &holdings)

	var summaries []struct {
		DncaTotAmt string `json:"dnca_tot_amt"`
		TotEvluAmt string `json:"tot_evlu_amt"`
	}
	_ = json.Unmarshal(env.Out2, &summaries)

	bal := broker.Balance{Currency: "KRW"}
	if len(summaries) > 0 {
		bal.Cash = parseDecimal(summaries[0].DncaTotAmt)
		bal.TotalValue = parseDecimal(summaries[0].TotEvluAmt)
	}
	for _, h := range holdings {
		qty, _ := strconv.ParseInt(h.HldgQty, 10, 64)
		if qty == 0 {
			continue
		}
		bal.Holdings = append(bal.Holdings, broker.Holding{
			Symbol:   h.PDNO,
			Market:   trading.MarketKR,
			Quantity: qty,
			AvgPrice: parseDecimal(h.PchsAvgPric),
			Price:    parseDecimal(h.Prpr),
		})
	}
	return bal
}

func (b *Broker) GetQuote(ctx context.Context, symbol string, market trading.Market) (*broker.Quote, error) {
	if b == nil || b.Client == nil {
		return nil, broker.ErrNotConnected
	}
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", symbol)

	raw, err := b.Client.Get(ctx, pricePath, trPrice, params)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("price response malformed: %w", err)
	}
	var out struct {
		StckPrpr string `json:"stck_prpr"`
		PrdyVrss string `json:"prdy_vrss"`
		PrdyCtrt string `json:"prdy_ctrt"`
		AcmlVol  string `json:"acml_vol"`
	}
	if err := json.Unmarshal(env.Out, &out); err != nil {
		return nil, fmt.Errorf("price output malformed: %w", err)
	}

	price := parseFloat(out.StckPrpr)
	change := parseFloat(out.PrdyVrss)
	volume, _ := strconv.ParseInt(out.AcmlVol, 10, 64)
	return &broker.Quote{
		Symbol:     symbol,
		Market:     market,
		Price:      price,
		PrevClose:  price - change,
		ChangeRate: parseFloat(out.PrdyCtrt),
		Volume:     volume,
		At:         time.Now().UTC(),
	}, nil
}

func (b *Broker) GetDailyBars(ctx context.Context, symbol string, market trading.Market, days int) ([]broker.DailyBar, error) {
	if b == nil || b.Client == nil {
		return nil, broker.ErrNotConnected
	}
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", symbol)
	params.Set("FID_PERIOD_DIV_CODE", "D")
	params.Set("FID_ORG_ADJ_PRC", "0")

	raw, err := b.Client.Get(ctx, dailyPricePath, trDailyPrice, params)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("daily price response malformed: %w", err)
	}
	var out []struct {
		StckBsopDate string `json:"stck_bsop_date"`
		StckOprc     string `json:"stck_oprc"`
		StckHgpr     string `json:"stck_hgpr"`
		StckLwpr     string `json:"stck_lwpr"`
		StckClpr     string `json:"stck_clpr"`
		AcmlVol      string `json:"acml_vol"`
	}
	if err := json.Unmarshal(env.Out, &out); err != nil {
		return nil, fmt.Errorf("daily price output malformed: %w", err)
	}

	bars := make([]broker.DailyBar, 0, len(out))
	for _, item := range out {
		date, err := time.Parse("20060102", item.StckBsopDate)
		if err != nil {
			continue
		}
		vol, _ := strconv.ParseInt(item.AcmlVol, 10, 64)
		bars = append(bars, broker.DailyBar{
			Date:   date,
			Open:   parseFloat(item.StckOprc),
			High:   parseFloat(item.StckHgpr),
			Low:    parseFloat(item.StckLwpr),
			Close:  parseFloat(item.StckClpr),
			Volume: vol,
		})
	}
	if days > 0 && len(bars) > days {
		bars = bars[:days]
	}
	return bars, nil
}

// GetIntradayBars fetches the day's one-minute bars and aggregates them
// into minutes-wide buckets, oldest first.
func (b *Broker) GetIntradayBars(ctx context.Context, symbol string, market trading.Market, minutes int) ([]broker.IntradayBar, error) {
	if b == nil || b.Client == nil {
		return nil, broker.ErrNotConnected
	}
	params := url.Values{}
	params.Set("FID_ETC_CLS_CODE", "")
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", symbol)
	params.Set("FID_INPUT_HOUR_1", time.Now().Format("150405"))
	params.Set("FID_PW_DATA_INCU_YN", "Y")

	raw, err := b.Client.Get(ctx, minuteChartPath, trMinuteChart, params)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("minute chart response malformed: %w", err)
	}
	var out []struct {
		StckBsopDate string `json:"stck_bsop_date"`
		StckCntgHour string `json:"stck_cntg_hour"`
		StckOprc     string `json:"stck_oprc"`
		StckHgpr     string `json:"stck_hgpr"`
		StckLwpr     string `json:"stck_lwpr"`
		StckPrpr     string `json:"stck_prpr"`
		CntgVol      string `json:"cntg_vol"`
	}
	if err := json.Unmarshal(env.Out2, &out); err != nil {
		return nil, fmt.Errorf("minute chart output malformed: %w", err)
	}

	bars := make([]broker.IntradayBar, 0, len(out))
	// API returns newest first.
	for i := len(out) - 1; i >= 0; i-- {
		item := out[i]
		at, err := time.Parse("20060102150405", item.StckBsopDate+item.StckCntgHour)
		if err != nil {
			continue
		}
		vol, _ := strconv.ParseInt(item.CntgVol, 10, 64)
		bars = append(bars, broker.IntradayBar{
			At:     at,
			Open:   parseFloat(item.StckOprc),
			High:   parseFloat(item.StckHgpr),
			Low:    parseFloat(item.StckLwpr),
			Close:  parseFloat(item.StckPrpr),
			Volume: vol,
		})
	}
	return AggregateBars(bars, minutes), nil
}

// AggregateBars folds one-minute bars into width-minute buckets. Partial
// trailing buckets are dropped.
func AggregateBars(bars []broker.IntradayBar, width int) []broker.IntradayBar {
	if width <= 1 || len(bars) == 0 {
		return bars
	}
	out := make([]broker.IntradayBar, 0, len(bars)/width)
	for i := 0; i+width <= len(bars); i += width {
		bucket := bars[i : i+width]
		agg := broker.IntradayBar{
			At:    bucket[0].At,
			Open:  bucket[0].Open,
			High:  bucket[0].High,
			Low:   bucket[0].Low,
			Close: bucket[len(bucket)-1].Close,
		}
		for _, b := range bucket {
			if b.High > agg.High {
				agg.High = b.High
			}
			if b.Low < agg.Low {
				agg.Low = b.Low
			}
			agg.Volume += b.Volume
		}
		out = append(out, agg)
	}
	return out
}

func parseFloat(raw string) float64 {
	v, _ := strconv.ParseFloat(raw, 64)
	return v
}

func parseDecimal(raw string) decimal.Decimal {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return v
}
