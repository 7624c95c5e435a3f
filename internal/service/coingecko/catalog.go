package coingecko

// DefaultCatalog maps CoinGecko ids to display symbols for the crypto watch list.
var DefaultCatalog = map[string]string{
	"bitcoin":            "BTC",
	"ethereum":           "ETH",
	"tether":             "USDT",
	"binancecoin":        "BNB",
	"solana":             "SOL",
	"ripple":             "XRP",
	"usd-coin":           "USDC",
	"cardano":            "ADA",
	"avalanche-2":        "AVAX",
	"dogecoin":           "DOGE",
	"tron":               "TRX",
	"polkadot":           "DOT",
	"chainlink":          "LINK",
	"matic-network":      "MATIC",
	"the-open-network":   "TON",
	"shiba-inu":          "SHIB",
	"litecoin":           "LTC",
	"bitcoin-cash":       "BCH",
	"near":               "NEAR",
	"uniswap":            "UNI",
	"leo-token":          "LEO",
	"dai":                "DAI",
	"aptos":              "APT",
	"cosmos":             "ATOM",
	"ethereum-classic":   "ETC",
	"monero":             "XMR",
	"stellar":            "XLM",
	"blockstack":         "STX",
	"filecoin":           "FIL",
	"hedera-hashgraph":   "HBAR",
	"immutable-x":        "IMX",
	"crypto-com-chain":   "CRO",
	"vechain":            "VET",
	"maker":              "MKR",
	"render-token":       "RNDR",
	"the-graph":          "GRT",
	"injective-protocol": "INJ",
	"optimism":           "OP",
	"aave":               "AAVE",
	"theta-token":        "THETA",
	"algorand":           "ALGO",
	"thorchain":          "RUNE",
	"fantom":             "FTM",
	"the-sandbox":        "SAND",
	"decentraland":       "MANA",
}
