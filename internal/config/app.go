package config

type AppConfig struct {
	Server ServerConfig
	Rooms  RoomDefaults
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	roomCfg, err := LoadRoomDefaults()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Rooms:  roomCfg,
		Log:    logCfg,
	}, nil
}
