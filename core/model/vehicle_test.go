package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vehicle2mqtt/internal/fixtures"
)

func fixtureVehicle(t *testing.T) Vehicle {
	t.Helper()
	v, err := Select(fixtures.MustResponse(fixtures.Vehicles).Vehicles(), "foobarVIN")
	require.NoError(t, err)
	return v
}

func TestFromAPI(t *testing.T) {
	v := fixtureVehicle(t)
	assert.Equal(t, "Chevrolet", v.Make)
	assert.Equal(t, "Bolt EV", v.Model)
	assert.Equal(t, "2020", v.Year)
	assert.Equal(t, "foobarVIN", v.VIN)
	assert.Equal(t, "2020 Chevrolet Bolt EV", v.String())
}

func TestGetSupported(t *testing.T) {
	v := fixtureVehicle(t)
	assert.Len(t, v.GetSupported(), 22)

	assert.Equal(t, []string{"ODOMETER"}, v.GetSupported("ODOMETER"))
	assert.Equal(t, []string{"ODOMETER"}, v.GetSupported("ODOMETER", "foo", "bar"))
	assert.Empty(t, v.GetSupported("foo", "bar"))

	// order follows the supported list, not the filter
	assert.Equal(t, []string{"ODOMETER", "TIRE PRESSURE"}, v.GetSupported("TIRE PRESSURE", "ODOMETER"))
}

func TestGetSupportedReturnsCopy(t *testing.T) {
	v := fixtureVehicle(t)
	all := v.GetSupported()
	all[0] = "changed"
	assert.Equal(t, "ENGINE COOLANT TEMP", v.SupportedDiagnostics[0])
}

func TestIsSupported(t *testing.T) {
	v := fixtureVehicle(t)
	assert.True(t, v.IsSupported("TIRE PRESSURE"))
	assert.False(t, v.IsSupported("WARP DRIVE"))
}

func TestSelect(t *testing.T) {
	vehicles := fixtures.MustResponse(fixtures.Vehicles).Vehicles()

	v, err := Select(vehicles, "")
	require.NoError(t, err)
	assert.Equal(t, "foobarVIN", v.VIN)

	v, err = Select(vehicles, "FOOBARVIN")
	require.NoError(t, err)
	assert.Equal(t, "foobarVIN", v.VIN)

	_, err = Select(vehicles, "OTHER")
	assert.True(t, errors.Is(err, ErrVehicleNotFound))

	_, err = Select(nil, "")
	assert.True(t, errors.Is(err, ErrVehicleNotFound))
}

func TestFromAPIWithoutDiagnostics(t *testing.T) {
	v := FromAPI(fixtures.MustResponse(fixtures.Vehicles).Vehicles()[0])
	v.SupportedDiagnostics = nil
	assert.Empty(t, v.GetSupported())
	assert.Empty(t, v.GetSupported("ODOMETER"))
}
