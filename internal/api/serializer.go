package api

import (
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// SonicSerializer implements echo.JSONSerializer with sonic
type SonicSerializer struct{}

var _ echo.JSONSerializer = SonicSerializer{}

// Serialize encodes i as the response body
func (SonicSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	api := sonic.ConfigDefault
	var (
		data []byte
		err  error
	)
	if indent != "" {
		data, err = api.MarshalIndent(i, "", indent)
	} else {
		data, err = api.Marshal(i)
	}
	if err != nil {
		return err
	}
	_, err = c.Response().Write(data)
	return err
}

// Deserialize decodes the request body into i
func (SonicSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := sonic.ConfigDefault.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err)).SetInternal(err)
	}
	return nil
}
