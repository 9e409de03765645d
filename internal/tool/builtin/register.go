package builtin

import (
	"github.com/pagepal/pagepal/internal/tool"
)

// Register registers every builtin tool into the given registry.
// Services are passed as parameters and captured by the definitions' handlers;
// no package-level state is involved.
func Register(registry *tool.Registry, weather *WeatherService, calendar *CalendarService, db *DBQueryService) {
	registry.Register(weather.Definition())
	registry.Register(calendar.Definition())
	registry.Register(db.Definition())
}
