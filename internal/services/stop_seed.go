package services

import (
	"context"
	"fmt"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/repository"
	"kigaligo/pkg/utils"
)

// StopSpot is one entry of the stop fixture.
type StopSpot struct {
	Code string
	Name string
	Type entities.StopType
	Zone string
	Lat  float64
	Lng  float64
}

// DefaultStops are the major Kigali stops loaded at startup.
var DefaultStops = []StopSpot{
	{"NYB001", "Nyabugogo Bus Terminal", entities.StopTypeBus, "Nyabugogo", -1.9441, 30.0619},
	{"NYB002", "Nyabugogo Taxi Park", entities.StopTypeTaxi, "Nyabugogo", -1.9450, 30.0625},
	{"NYB003", "Nyabugogo Moto Park", entities.StopTypeMoto, "Nyabugogo", -1.9435, 30.0610},

	{"CC001", "City Center Bus Stop", entities.StopTypeBus, "City Center", -1.9500, 30.0580},
	{"CC002", "City Center Taxi Stand", entities.StopTypeTaxi, "City Center", -1.9510, 30.0590},
	{"CC003", "City Center Combined", entities.StopTypeCombined, "City Center", -1.9495, 30.0575},

	{"KIM001", "Kimironko Bus Stop", entities.StopTypeBus, "Kimironko", -1.9200, 30.0900},
	{"KIM002", "Kimironko Taxi Stand", entities.StopTypeTaxi, "Kimironko", -1.9210, 30.0910},
	{"KIM003", "Kimironko Market Stop", entities.StopTypeCombined, "Kimironko", -1.9195, 30.0895},

	{"REM001", "Remera Bus Stop", entities.StopTypeBus, "Remera", -1.9300, 30.1000},
	{"REM002", "Remera Taxi Stand", entities.StopTypeTaxi, "Remera", -1.9310, 30.1010},

	{"KAC001", "Kacyiru Bus Stop", entities.StopTypeBus, "Kacyiru", -1.9400, 30.0800},
	{"KAC002", "Kacyiru Combined Stop", entities.StopTypeCombined, "Kacyiru", -1.9410, 30.0810},

	{"GIK001", "Gikondo Bus Stop", entities.StopTypeBus, "Gikondo", -1.9600, 30.0700},
	{"GIK002", "Gikondo Taxi Stand", entities.StopTypeTaxi, "Gikondo", -1.9610, 30.0710},

	{"KAB001", "Kabeza Bus Stop", entities.StopTypeBus, "Kabeza", -1.9700, 30.0500},
	{"KAB002", "Kabeza Combined Stop", entities.StopTypeCombined, "Kabeza", -1.9710, 30.0510},

	{"KAN001", "Kanombe Bus Stop", entities.StopTypeBus, "Kanombe", -1.9800, 30.1400},
	{"KAN002", "Kigali Airport Stop", entities.StopTypeCombined, "Kanombe", -1.9682, 30.1394},

	{"KIC001", "Kicukiro Bus Stop", entities.StopTypeBus, "Kicukiro", -1.9500, 30.1100},
	{"KIC002", "Kicukiro Taxi Stand", entities.StopTypeTaxi, "Kicukiro", -1.9510, 30.1110},

	{"NYA001", "Nyamirambo Bus Stop", entities.StopTypeBus, "Nyamirambo", -1.9400, 30.0400},
	{"NYA002", "Nyamirambo Combined Stop", entities.StopTypeCombined, "Nyamirambo", -1.9410, 30.0410},

	{"UR001", "University of Rwanda Stop", entities.StopTypeBus, "Remera", -1.9300, 30.0700},
	{"KCC001", "Kigali Convention Centre Stop", entities.StopTypeCombined, "Kacyiru", -1.9500, 30.0900},
	{"AMS001", "Amahoro Stadium Stop", entities.StopTypeBus, "Remera", -1.9350, 30.0950},
}

// SeedStops stores every spot whose code is not known yet and returns the
// number of stops created. Running it twice creates nothing the second time.
func SeedStops(ctx context.Context, repo repository.StopRepository, spots []StopSpot) (int, error) {
	stops := make([]*entities.Stop, 0, len(spots))
	for _, spot := range spots {
		stops = append(stops, &entities.Stop{
			ID:       utils.GenerateID(),
			Code:     spot.Code,
			Name:     spot.Name,
			Type:     spot.Type,
			Zone:     spot.Zone,
			Location: entities.NewLocation(spot.Lat, spot.Lng),
			Active:   true,
		})
	}
	created, err := repo.AddStops(ctx, stops)
	if err != nil {
		return 0, fmt.Errorf("seed stops: %w", err)
	}
	return created, nil
}
