// Package transports registers every built-in transport. Import it for its
// side effects.
package transports

import (
	_ "github.com/drblury/retailstream/transport/aws"
	_ "github.com/drblury/retailstream/transport/channel"
	_ "github.com/drblury/retailstream/transport/http"
	_ "github.com/drblury/retailstream/transport/io"
	_ "github.com/drblury/retailstream/transport/jetstream"
	_ "github.com/drblury/retailstream/transport/kafka"
	_ "github.com/drblury/retailstream/transport/nats"
	_ "github.com/drblury/retailstream/transport/postgres"
	_ "github.com/drblury/retailstream/transport/rabbitmq"
	_ "github.com/drblury/retailstream/transport/sqlite"
)
