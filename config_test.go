package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_AllowedIPList(t *testing.T) {
	c := Config{AllowedIPs: "10.0.0.1, 10.0.0.2,10.0.0.3"}
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, c.AllowedIPList())
}

func TestConfig_AllowedIPList_Empty(t *testing.T) {
	c := Config{}
	require.Nil(t, c.AllowedIPList())
}

func TestLoadBankAPIKeys_IndexesByBankExcludingBTCPay(t *testing.T) {
	t.Setenv("CHASE_API_KEY", "chase-secret")
	t.Setenv("WELLS_API_KEY", "wells-secret")
	t.Setenv("BTCPAY_API_KEY", "btcpay-secret")

	keys := loadBankAPIKeys()
	require.Equal(t, "chase-secret", keys["CHASE"])
	require.Equal(t, "wells-secret", keys["WELLS"])
	_, hasBTCPay := keys["BTCPAY"]
	require.False(t, hasBTCPay)
}
