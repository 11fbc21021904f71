package deploy

// defaultTemplate is the deployment definition shipped with the manager. It
// is written to the install root on first initialization and replaced only
// by the self-update path. Placeholders are bound to the resolved
// installation paths and images at render time; values are inserted inside
// YAML quotes so paths with spaces survive.
const defaultTemplate = `services:
  llama:
    image: "{{LLAMA_IMAGE}}"
    restart: unless-stopped
    volumes:
      - "{{MODEL_DIR}}:/models:ro"
      - "{{INSTALL_DIR}}/llama.command:/config/llama.command:ro"
    entrypoint: ["/bin/sh", "-c", "exec $(cat /config/llama.command)"]
    ports:
      - "{{LLAMA_PORT}}:{{LLAMA_PORT}}"
    deploy:
      resources:
        reservations:
          devices:
            - driver: nvidia
              count: all
              capabilities: ["gpu"]
  webui:
    image: "{{WEBUI_IMAGE}}"
    restart: unless-stopped
    depends_on:
      - llama
    volumes:
      - "{{UI_DATA_DIR}}:/app/backend/data"
      - "{{INSTALL_DIR}}/whitelist.conf:/config/whitelist.conf:ro"
    ports:
      - "{{WEBUI_PORT}}:8080"
`
